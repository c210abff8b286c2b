package flow

import "gopkg.in/yaml.v3"

// Selector is a CSS locator plus the human description used in failures.
// Pure data structure - the driver decides how to resolve it.
type Selector struct {
	CSS         string `yaml:"css"`
	Description string `yaml:"description"`
	// PageOnly skips the open-modal scope and searches the page directly.
	PageOnly bool `yaml:"pageOnly"`
}

// selectorRaw avoids recursing into UnmarshalYAML.
type selectorRaw Selector

// UnmarshalYAML allows Selector to be unmarshaled from a bare CSS string or
// a mapping.
func (s *Selector) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.CSS = node.Value
		return nil
	}

	var raw selectorRaw
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*s = Selector(raw)
	return nil
}

// IsEmpty returns true if no CSS is set.
func (s *Selector) IsEmpty() bool {
	return s.CSS == ""
}

// Describe returns the description, falling back to the CSS.
func (s *Selector) Describe() string {
	if s.Description != "" {
		return s.Description
	}
	return s.CSS
}

// DescribeQuoted returns a quoted description like "Save button" or
// css="a.save".
func (s *Selector) DescribeQuoted() string {
	switch {
	case s.Description != "":
		return "\"" + s.Description + "\""
	case s.CSS != "":
		return "css=\"" + s.CSS + "\""
	default:
		return ""
	}
}

// RowSelector identifies a grid row, either by a key embedded in a link's
// query string or by the texts its cells contain.
type RowSelector struct {
	Form  string   `yaml:"form"`  // Known form whose grid, edit link and key param are the defaults
	Grid  string   `yaml:"grid"`  // Grid CSS
	Link  string   `yaml:"link"`  // Link CSS inside the row
	Param string   `yaml:"param"` // Query parameter carrying the key
	Key   string   `yaml:"key"`
	Text  []string `yaml:"text"` // Every entry must appear in the row text
}

// Describe returns a human-readable description.
func (r *RowSelector) Describe() string {
	if r.Key != "" {
		return r.Param + "=" + r.Key
	}
	if len(r.Text) > 0 {
		out := r.Text[0]
		for _, t := range r.Text[1:] {
			out += ", " + t
		}
		return out
	}
	return r.Grid
}
