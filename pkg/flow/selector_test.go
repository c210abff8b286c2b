package flow

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestSelector_UnmarshalYAML_ScalarValue(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		expected string
	}{
		{"attribute selector", `"input[id$='txtPC1ID']"`, "input[id$='txtPC1ID']"},
		{"compound selector", `".modal.in a.modal-delete"`, ".modal.in a.modal-delete"},
		{"unquoted id", `"#btnSave"`, "#btnSave"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Selector
			if err := yaml.Unmarshal([]byte(tt.yaml), &s); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.CSS != tt.expected {
				t.Errorf("got CSS=%q, want %q", s.CSS, tt.expected)
			}
		})
	}
}

func TestSelector_UnmarshalYAML_StructValue(t *testing.T) {
	src := `
css: "a[id$='btSearch'], button[id$='btSearch']"
description: Search button
pageOnly: true
`
	var s Selector
	if err := yaml.Unmarshal([]byte(src), &s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.CSS != "a[id$='btSearch'], button[id$='btSearch']" {
		t.Errorf("unexpected CSS %q", s.CSS)
	}
	if s.Description != "Search button" {
		t.Errorf("unexpected description %q", s.Description)
	}
	if !s.PageOnly {
		t.Error("expected pageOnly")
	}
}

func TestSelector_UnmarshalYAML_Invalid(t *testing.T) {
	var s Selector
	if err := yaml.Unmarshal([]byte(`css: [a, b]`), &s); err == nil {
		t.Error("expected error for list css")
	}
}

func TestSelector_Describe(t *testing.T) {
	tests := []struct {
		name   string
		sel    Selector
		plain  string
		quoted string
	}{
		{"description wins", Selector{CSS: "#x", Description: "Save"}, "Save", `"Save"`},
		{"css fallback", Selector{CSS: "#x"}, "#x", `css="#x"`},
		{"empty", Selector{}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sel.Describe(); got != tt.plain {
				t.Errorf("Describe()=%q, want %q", got, tt.plain)
			}
			if got := tt.sel.DescribeQuoted(); got != tt.quoted {
				t.Errorf("DescribeQuoted()=%q, want %q", got, tt.quoted)
			}
		})
	}
}

func TestSelector_IsEmpty(t *testing.T) {
	if !(&Selector{Description: "only words"}).IsEmpty() {
		t.Error("selector without css should be empty")
	}
	if (&Selector{CSS: "#a"}).IsEmpty() {
		t.Error("selector with css should not be empty")
	}
}

func TestRowSelector_Describe(t *testing.T) {
	tests := []struct {
		row      RowSelector
		expected string
	}{
		{RowSelector{Param: "AuditCPK", Key: "42"}, "AuditCPK=42"},
		{RowSelector{Text: []string{"10/25/25"}}, "10/25/25"},
		{RowSelector{Text: []string{"a", "b"}}, "a, b"},
		{RowSelector{Grid: "#tblAuditCs"}, "#tblAuditCs"},
	}
	for _, tt := range tests {
		if got := tt.row.Describe(); got != tt.expected {
			t.Errorf("Describe()=%q, want %q", got, tt.expected)
		}
	}
}
