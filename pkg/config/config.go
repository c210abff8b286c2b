// Package config loads pookie-runner settings: the app settings every run
// needs (URL, credentials, test subjects) and the optional workspace file
// that lives next to the flows.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Workspace represents the workspace configuration (config.yaml) in a flow
// directory.
type Workspace struct {
	// Flow selection
	Flows       []string `yaml:"flows"`       // Glob patterns for flows
	IncludeTags []string `yaml:"includeTags"` // Tags to include
	ExcludeTags []string `yaml:"excludeTags"` // Tags to exclude

	// Variables visible to every flow
	Env map[string]string `yaml:"env"`
}

// WorkspaceFiles are the names LoadWorkspaceFromDir looks for.
var WorkspaceFiles = []string{"config.yaml", "config.yml"}

// LoadWorkspace loads a workspace file.
func LoadWorkspace(path string) (*Workspace, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var ws Workspace
	if err := yaml.Unmarshal(data, &ws); err != nil {
		return nil, err
	}

	return &ws, nil
}

// LoadWorkspaceFromDir looks for config.yaml or config.yml in the directory.
// No file means an empty workspace.
func LoadWorkspaceFromDir(dir string) (*Workspace, error) {
	for _, name := range WorkspaceFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadWorkspace(path)
		}
	}
	return &Workspace{}, nil
}

// IsWorkspaceFile reports whether path names a workspace file rather than a
// flow.
func IsWorkspaceFile(path string) bool {
	base := filepath.Base(path)
	for _, name := range WorkspaceFiles {
		if base == name {
			return true
		}
	}
	return false
}
