package validator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeFlows writes name -> content pairs under dir, creating subdirectories.
func writeFlows(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func hasError(result *Result, substr string) bool {
	for _, err := range result.Errors {
		if strings.Contains(err.Error(), substr) {
			return true
		}
	}
	return false
}

func TestValidate_SingleFile(t *testing.T) {
	dir := t.TempDir()
	writeFlows(t, dir, map[string]string{
		"audit_c.yaml": `
name: AuditC
---
- openFormsTab
- openForm: AuditC
- click: "input[id$='btnSave']"
`,
	})

	result := New(nil, nil).Validate(filepath.Join(dir, "audit_c.yaml"))

	if !result.IsValid() {
		t.Errorf("expected valid result, got errors: %v", result.Errors)
	}
	if len(result.TestCases) != 1 {
		t.Errorf("expected 1 test case, got %d", len(result.TestCases))
	}
	if len(result.Flows) != 1 || result.Flows[0].Config.Name != "AuditC" {
		t.Errorf("expected parsed AuditC flow, got %+v", result.Flows)
	}
}

func TestValidate_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFlows(t, dir, map[string]string{
		"hits.yaml":      `- openForm: HITS`,
		"referrals.yaml": `- click: "a[id$='lnkReferrals']"`,
		"README.md":      `# flows`,
	})

	result := New(nil, nil).Validate(dir)

	if !result.IsValid() {
		t.Errorf("expected valid result, got errors: %v", result.Errors)
	}
	if len(result.TestCases) != 2 {
		t.Errorf("expected 2 test cases, got %d: %v", len(result.TestCases), result.TestCases)
	}
}

func TestValidate_RunFlowResolution(t *testing.T) {
	dir := t.TempDir()
	writeFlows(t, dir, map[string]string{
		"main.yaml": `
- login
- runFlow: common/open_forms.yaml
- openForm: PHQ9
`,
		"common/open_forms.yaml": `
- searchCase: "${PC1_ID}"
- openFormsTab
`,
	})

	result := New(nil, nil).Validate(dir)

	if !result.IsValid() {
		t.Errorf("expected valid result, got errors: %v", result.Errors)
	}
	// Subdirectories hold shared subflows; only main.yaml is a test case
	if len(result.TestCases) != 1 {
		t.Errorf("expected 1 test case, got %d: %v", len(result.TestCases), result.TestCases)
	}
}

func TestValidate_NestedRunFlow(t *testing.T) {
	dir := t.TempDir()
	writeFlows(t, dir, map[string]string{
		"main.yaml": `- runFlow: sub1.yaml`,
		"sub1.yaml": `- runFlow: sub2.yaml`,
		"sub2.yaml": `- openFormsTab`,
	})

	result := New(nil, nil).Validate(filepath.Join(dir, "main.yaml"))

	if !result.IsValid() {
		t.Errorf("expected valid result, got errors: %v", result.Errors)
	}
	if len(result.TestCases) != 1 {
		t.Errorf("expected 1 test case, got %d", len(result.TestCases))
	}
}

func TestValidate_CircularDependency(t *testing.T) {
	dir := t.TempDir()
	writeFlows(t, dir, map[string]string{
		"a.yaml": `- runFlow: b.yaml`,
		"b.yaml": `- runFlow: a.yaml`,
	})

	result := New(nil, nil).Validate(filepath.Join(dir, "a.yaml"))

	if result.IsValid() {
		t.Fatal("expected circular dependency error")
	}
	if !hasError(result, "circular dependency") {
		t.Errorf("expected circular dependency error, got: %v", result.Errors)
	}
}

func TestValidate_SelfReference(t *testing.T) {
	dir := t.TempDir()
	writeFlows(t, dir, map[string]string{"self.yaml": `- runFlow: self.yaml`})

	result := New(nil, nil).Validate(filepath.Join(dir, "self.yaml"))

	if !hasError(result, "circular dependency") {
		t.Errorf("expected circular dependency error for self-reference, got: %v", result.Errors)
	}
}

func TestValidate_MissingRunFlowFile(t *testing.T) {
	dir := t.TempDir()
	writeFlows(t, dir, map[string]string{"main.yaml": `- runFlow: nonexistent.yaml`})

	result := New(nil, nil).Validate(filepath.Join(dir, "main.yaml"))

	if result.IsValid() {
		t.Error("expected error for missing runFlow file")
	}
}

func TestValidate_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeFlows(t, dir, map[string]string{"invalid.yaml": `- click: [invalid yaml`})

	result := New(nil, nil).Validate(filepath.Join(dir, "invalid.yaml"))

	if !hasError(result, "parse error") {
		t.Errorf("expected parse error for invalid YAML, got: %v", result.Errors)
	}
}

func TestValidate_UnknownStep(t *testing.T) {
	dir := t.TempDir()
	writeFlows(t, dir, map[string]string{"mobile.yaml": `- tapOn: "Login"`})

	result := New(nil, nil).Validate(filepath.Join(dir, "mobile.yaml"))

	if result.IsValid() {
		t.Error("expected error for unknown step type")
	}
}

func TestValidate_ErrorsAreCollected(t *testing.T) {
	dir := t.TempDir()
	writeFlows(t, dir, map[string]string{
		"a.yaml": `- runFlow: missing_a.yaml`,
		"b.yaml": `- runFlow: missing_b.yaml`,
	})

	result := New(nil, nil).Validate(dir)

	if len(result.Errors) != 2 {
		t.Errorf("expected 2 errors, got %d: %v", len(result.Errors), result.Errors)
	}
}

func TestValidate_TagFiltering(t *testing.T) {
	dir := t.TempDir()
	writeFlows(t, dir, map[string]string{
		"smoke.yaml": `
tags:
  - smoke
---
- openForm: HITS
`,
		"regression.yaml": `
tags:
  - regression
---
- openForm: AuditC
`,
	})

	result := New([]string{"smoke"}, nil).Validate(dir)
	if !result.IsValid() {
		t.Errorf("expected valid result, got errors: %v", result.Errors)
	}
	if len(result.TestCases) != 1 || !strings.HasSuffix(result.TestCases[0], "smoke.yaml") {
		t.Errorf("expected only smoke.yaml, got %v", result.TestCases)
	}

	result = New(nil, []string{"regression"}).Validate(dir)
	if len(result.TestCases) != 1 || !strings.HasSuffix(result.TestCases[0], "smoke.yaml") {
		t.Errorf("expected regression excluded, got %v", result.TestCases)
	}
}

func TestValidate_NonExistentPath(t *testing.T) {
	result := New(nil, nil).Validate("/nonexistent/path")

	if result.IsValid() {
		t.Error("expected error for non-existent path")
	}
}

func TestValidate_RetryWithFile(t *testing.T) {
	dir := t.TempDir()
	writeFlows(t, dir, map[string]string{
		"main.yaml": `
- retry:
    maxRetries: "2"
    file: save.yaml
`,
		"save.yaml": `- click: "input[id$='btnSave']"`,
	})

	result := New(nil, nil).Validate(filepath.Join(dir, "main.yaml"))

	if !result.IsValid() {
		t.Errorf("expected valid result, got errors: %v", result.Errors)
	}
}

func TestValidate_SharedDependency(t *testing.T) {
	dir := t.TempDir()
	writeFlows(t, dir, map[string]string{
		"a.yaml":      `- runFlow: shared.yaml`,
		"b.yaml":      `- runFlow: shared.yaml`,
		"shared.yaml": `- openFormsTab`,
	})

	result := New(nil, nil).Validate(dir)

	if !result.IsValid() {
		t.Errorf("expected valid result, got errors: %v", result.Errors)
	}
	// A top-level flow stays a test case even after being validated as a dependency
	if len(result.TestCases) != 3 {
		t.Errorf("expected 3 test cases, got %d: %v", len(result.TestCases), result.TestCases)
	}
}

func TestValidate_BrokenDependencyReportedOnce(t *testing.T) {
	dir := t.TempDir()
	writeFlows(t, dir, map[string]string{
		"a.yaml":          `- runFlow: common/bad.yaml`,
		"b.yaml":          `- runFlow: common/bad.yaml`,
		"common/bad.yaml": `- click: [oops`,
	})

	result := New(nil, nil).Validate(dir)

	if len(result.Errors) != 1 {
		t.Errorf("expected 1 error, got %d: %v", len(result.Errors), result.Errors)
	}
}

func TestValidate_Hooks(t *testing.T) {
	dir := t.TempDir()
	writeFlows(t, dir, map[string]string{
		"main.yaml": `
onFlowStart:
  - runFlow: setup.yaml
onFlowComplete:
  - runFlow: teardown.yaml
---
- openFormsTab
`,
		"setup.yaml": `- login`,
	})

	result := New(nil, nil).Validate(filepath.Join(dir, "main.yaml"))

	// teardown.yaml is missing
	if len(result.Errors) != 1 {
		t.Errorf("expected 1 error, got %d: %v", len(result.Errors), result.Errors)
	}
}

func TestValidate_NestedCommands(t *testing.T) {
	dir := t.TempDir()
	writeFlows(t, dir, map[string]string{
		"main.yaml": `
- repeat:
    times: "2"
    commands:
      - runFlow: helper.yaml
- runFlow:
    commands:
      - click: "a[id$='lnkForms']"
`,
		"helper.yaml": `- openFormsTab`,
	})

	result := New(nil, nil).Validate(filepath.Join(dir, "main.yaml"))

	if !result.IsValid() {
		t.Errorf("expected valid result, got errors: %v", result.Errors)
	}
}

func TestValidate_RunScriptFile(t *testing.T) {
	dir := t.TempDir()
	writeFlows(t, dir, map[string]string{
		"main.yaml": `
- runScript: scripts/dates.js
- runScript: missing.js
`,
		"scripts/dates.js": `output.today = pookie.date()`,
	})

	result := New(nil, nil).Validate(filepath.Join(dir, "main.yaml"))

	if len(result.Errors) != 1 || !hasError(result, "missing.js") {
		t.Errorf("expected one error for missing.js, got: %v", result.Errors)
	}
}

func TestValidate_WorkspacePatterns(t *testing.T) {
	tests := []struct {
		name     string
		config   string
		expected int
	}{
		{"subdir glob", "flows:\n  - forms/*\n", 3},
		{"recursive", "flows:\n  - \"**\"\n", 5},
		{"recursive suffix", "flows:\n  - \"**/audit*.yaml\"\n", 1},
		{"multiple patterns deduplicated", "flows:\n  - \"*.yaml\"\n  - \"ref*.yaml\"\n", 1},
		{"nested dir", "flows:\n  - forms/screens/*\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFlows(t, dir, map[string]string{
				"config.yaml":                tt.config,
				"referrals.yaml":             `- openFormsTab`,
				"forms/audit_c.yaml":         `- openForm: AuditC`,
				"forms/hits.yml":             `- openForm: HITS`,
				"forms/notes.txt":            `not a flow`,
				"forms/screens/screen.yaml":  `- openForm: Screen`,
				"common/open_forms_tab.yaml": `- openFormsTab`,
			})

			result := New(nil, nil).Validate(dir)

			if !result.IsValid() {
				t.Errorf("expected valid result, got errors: %v", result.Errors)
			}
			if len(result.TestCases) != tt.expected {
				t.Errorf("expected %d test cases, got %d: %v", tt.expected, len(result.TestCases), result.TestCases)
			}
		})
	}
}

func TestValidate_WorkspaceTags(t *testing.T) {
	dir := t.TempDir()
	writeFlows(t, dir, map[string]string{
		"config.yaml": "includeTags:\n  - forms\nexcludeTags:\n  - wip\n",
		"ready.yaml":  "tags: [forms]\n---\n- openForm: HITS\n",
		"wip.yaml":    "tags: [forms, wip]\n---\n- openForm: AuditC\n",
		"other.yaml":  "tags: [referrals]\n---\n- openFormsTab\n",
	})

	result := New(nil, nil).Validate(dir)

	if len(result.TestCases) != 1 || !strings.HasSuffix(result.TestCases[0], "ready.yaml") {
		t.Errorf("expected only ready.yaml, got %v", result.TestCases)
	}
}

func TestValidate_InvalidGlobPattern(t *testing.T) {
	dir := t.TempDir()
	writeFlows(t, dir, map[string]string{"config.yaml": "flows:\n  - \"[invalid\"\n"})

	result := New(nil, nil).Validate(dir)

	if result.IsValid() {
		t.Error("expected error for invalid glob pattern")
	}
}

func TestValidate_InvalidWorkspaceConfig(t *testing.T) {
	dir := t.TempDir()
	writeFlows(t, dir, map[string]string{"config.yaml": "flows: [unclosed\n"})

	result := New(nil, nil).Validate(dir)

	if !hasError(result, "invalid workspace config") {
		t.Errorf("expected workspace config error, got: %v", result.Errors)
	}
}

func TestValidate_EmptyDirectory(t *testing.T) {
	result := New(nil, nil).Validate(t.TempDir())

	if !result.IsValid() {
		t.Errorf("expected valid result for empty dir, got errors: %v", result.Errors)
	}
	if len(result.TestCases) != 0 {
		t.Errorf("expected 0 test cases for empty dir, got %d", len(result.TestCases))
	}
}

func TestResult_IsValid(t *testing.T) {
	r := &Result{}
	if !r.IsValid() {
		t.Error("empty result should be valid")
	}

	r.Errors = append(r.Errors, &ValidationError{File: "test", Message: "error"})
	if r.IsValid() {
		t.Error("result with errors should not be valid")
	}
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{File: "audit_c.yaml", Message: "something went wrong"}

	expected := "audit_c.yaml: something went wrong"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
}

func TestValidate_ExampleFlows(t *testing.T) {
	dir := filepath.Join("..", "..", "flows")
	if _, err := os.Stat(dir); err != nil {
		t.Skip("example flows not present")
	}

	result := New(nil, nil).Validate(dir)
	for _, err := range result.Errors {
		t.Errorf("unexpected error: %v", err)
	}
	if len(result.TestCases) != 18 {
		t.Errorf("expected 18 example flows, got %d: %v", len(result.TestCases), result.TestCases)
	}
	for _, tc := range result.TestCases {
		if strings.Contains(tc, "common") {
			t.Errorf("shared subflow %s listed as a test case", tc)
		}
	}
}
