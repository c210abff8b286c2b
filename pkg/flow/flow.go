// Package flow handles parsing and representation of YAML flow files.
package flow

// Flow represents a parsed flow file.
type Flow struct {
	SourcePath string // Path to the source file
	Config     Config // Flow configuration (name, tags, etc.)
	Steps      []Step // Steps to execute
}

// Config represents flow-level configuration.
type Config struct {
	URL            string            `yaml:"url"` // Start page, relative to the app URL
	Name           string            `yaml:"name"`
	Tags           []string          `yaml:"tags"`
	Env            map[string]string `yaml:"env"`
	Timeout        int               `yaml:"timeout"`        // Flow timeout in ms
	PerSubject     bool              `yaml:"perSubject"`     // Run once per configured PC1 id
	CommandTimeout int               `yaml:"commandTimeout"` // Default locate timeout in ms
	OnFlowStart    []Step            `yaml:"-"`              // Lifecycle hook: runs before commands
	OnFlowComplete []Step            `yaml:"-"`              // Lifecycle hook: runs after commands
}
