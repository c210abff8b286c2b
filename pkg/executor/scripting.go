package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pookie-qa/pookie-runner/pkg/core"
	"github.com/pookie-qa/pookie-runner/pkg/flow"
	"github.com/pookie-qa/pookie-runner/pkg/jsengine"
)

// envVarPattern matches ALL_CAPS identifiers that look like env variables
var envVarPattern = regexp.MustCompile(`\b([A-Z][A-Z0-9_]{2,})\b`)

// SubjectVariable holds the PC1 id of the session a flow runs against.
const SubjectVariable = "PC1_ID"

// ScriptEngine handles JavaScript execution and variable management.
type ScriptEngine struct {
	js        *jsengine.Engine
	variables map[string]string
	flowDir   string // Directory of current flow (for resolving relative paths)
}

// NewScriptEngine creates a new script engine.
func NewScriptEngine(opts ...jsengine.Option) *ScriptEngine {
	return &ScriptEngine{
		js:        jsengine.New(opts...),
		variables: make(map[string]string),
	}
}

// Close cleans up the script engine.
func (se *ScriptEngine) Close() {
	if se.js != nil {
		se.js.Close()
	}
}

// SetFlowDir sets the current flow directory for relative path resolution.
func (se *ScriptEngine) SetFlowDir(dir string) {
	se.flowDir = dir
}

// SetVariable sets a variable in both Go map and JS engine.
func (se *ScriptEngine) SetVariable(name, value string) {
	se.variables[name] = value
	se.js.SetVariable(name, value)
}

// SetVariables sets multiple variables.
func (se *ScriptEngine) SetVariables(vars map[string]string) {
	for k, v := range vars {
		se.SetVariable(k, v)
	}
}

// ImportSystemEnv imports system environment variables into the script engine.
// Only imports variables matching the pattern (uppercase with underscores).
func (se *ScriptEngine) ImportSystemEnv() {
	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if ok && envVarPattern.MatchString(name) {
			se.SetVariable(name, value)
		}
	}
}

// GetVariable returns a variable value.
func (se *ScriptEngine) GetVariable(name string) string {
	return se.variables[name]
}

// SetSession exposes the browser session to scripts and binds PC1_ID.
func (se *ScriptEngine) SetSession(info *core.PlatformInfo) {
	if info == nil {
		return
	}
	se.js.SetSession(jsengine.Session{
		Subject: info.Subject,
		Backend: info.Backend,
		Browser: info.Browser,
		BaseURL: info.BaseURL,
	})
	if info.Subject != "" {
		se.SetVariable(SubjectVariable, info.Subject)
	}
}

// GetOutput returns the JS output variables.
func (se *ScriptEngine) GetOutput() map[string]interface{} {
	return se.js.GetOutput()
}

// SyncOutputToVariables copies JS output back to variables.
func (se *ScriptEngine) SyncOutputToVariables() {
	for k, v := range se.js.GetOutput() {
		se.SetVariable(k, fmt.Sprintf("%v", v))
	}
}

// ApplyCapture stores a value a step observed, such as a captured query
// parameter, in its flow variable.
func (se *ScriptEngine) ApplyCapture(result *core.CommandResult) {
	if result == nil || !result.Success {
		return
	}
	switch c := result.Data.(type) {
	case core.Capture:
		if c.Variable != "" {
			se.SetVariable(c.Variable, c.Value)
		}
	case *core.Capture:
		if c != nil && c.Variable != "" {
			se.SetVariable(c.Variable, c.Value)
		}
	}
}

// ExpandVariables expands ${expr} and $VAR syntax in text.
func (se *ScriptEngine) ExpandVariables(text string) string {
	if !strings.Contains(text, "$") {
		return text
	}

	// First pass: JS engine for ${expression} syntax
	result, err := se.js.ExpandVariables(text)
	if err == nil {
		text = result
	}

	// Second pass: $VAR syntax without braces
	return se.expandDollarVars(text)
}

// expandDollarVar replaces $VAR with value, checking word boundaries.
func expandDollarVar(text, name, value string) string {
	pattern := "$" + name
	idx := 0
	for {
		pos := strings.Index(text[idx:], pattern)
		if pos == -1 {
			break
		}
		pos += idx

		// Check if followed by alphanumeric (would be different variable)
		endPos := pos + len(pattern)
		if endPos < len(text) {
			next := text[endPos]
			if (next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z') ||
				(next >= '0' && next <= '9') || next == '_' {
				idx = endPos
				continue
			}
		}

		text = text[:pos] + value + text[endPos:]
		idx = pos + len(value)
	}
	return text
}

// expandDollarVars expands $VAR syntax (without braces) using stored variables.
func (se *ScriptEngine) expandDollarVars(text string) string {
	// Longest first so $PC1_ID_2 is not eaten by $PC1_ID
	names := make([]string, 0, len(se.variables))
	for name := range se.variables {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return len(names[i]) > len(names[j])
	})

	for _, name := range names {
		text = expandDollarVar(text, name, se.variables[name])
	}
	return text
}

// RunScript executes a JavaScript script.
func (se *ScriptEngine) RunScript(script string, env map[string]string) error {
	script = se.ExpandVariables(script)

	for k, v := range env {
		se.SetVariable(k, v)
	}

	// Unset env-looking names are undefined, not ReferenceErrors.
	se.defineMissing(script)

	if err := se.js.RunScript(script); err != nil {
		return err
	}

	se.SyncOutputToVariables()
	return nil
}

func (se *ScriptEngine) defineMissing(script string) {
	for _, name := range envVarPattern.FindAllString(script, -1) {
		se.js.DefineUndefinedIfMissing(name)
	}
}

// EvalCondition evaluates a script condition and returns true/false.
func (se *ScriptEngine) EvalCondition(script string) (bool, error) {
	script = extractJS(script)
	script = se.expandDollarVars(script)
	se.defineMissing(script)

	result, err := se.js.Eval(script)
	if err != nil {
		return false, err
	}

	switch v := result.(type) {
	case bool:
		return v, nil
	case string:
		return v == "true", nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return result != nil, nil
	}
}

// ResolvePath resolves a relative path against the flow directory.
func (se *ScriptEngine) ResolvePath(path string) string {
	if filepath.IsAbs(path) || se.flowDir == "" {
		return path
	}
	return filepath.Join(se.flowDir, path)
}

// ============================================
// Step Execution Helpers
// ============================================

// ExecuteDefineVariables handles defineVariables step.
func (se *ScriptEngine) ExecuteDefineVariables(step *flow.DefineVariablesStep) *core.CommandResult {
	for k, v := range step.Env {
		se.SetVariable(k, se.ExpandVariables(v))
	}
	return &core.CommandResult{
		Success: true,
		Message: fmt.Sprintf("Defined %d variable(s)", len(step.Env)),
	}
}

// ExecuteRunScript handles runScript step.
func (se *ScriptEngine) ExecuteRunScript(step *flow.RunScriptStep) *core.CommandResult {
	script := step.ScriptPath()

	if strings.HasSuffix(script, ".js") {
		filePath := se.ResolvePath(script)
		content, err := os.ReadFile(filePath)
		if err != nil {
			return &core.CommandResult{
				Success: false,
				Error:   core.ErrInvalidConfig.WithMessage("cannot read script file " + filePath).WithCause(err),
				Message: fmt.Sprintf("Cannot read script file: %s", filePath),
			}
		}
		script = string(content)
	}

	if err := se.RunScript(script, step.Env); err != nil {
		return &core.CommandResult{
			Success: false,
			Error:   err,
			Message: fmt.Sprintf("Script execution failed: %v", err),
		}
	}

	return &core.CommandResult{
		Success: true,
		Message: "Script executed successfully",
	}
}

// ExecuteEvalScript handles evalScript step.
func (se *ScriptEngine) ExecuteEvalScript(step *flow.EvalScriptStep) *core.CommandResult {
	script := extractJS(step.Script)
	se.defineMissing(script)
	if err := se.js.RunScript(script); err != nil {
		return &core.CommandResult{
			Success: false,
			Error:   err,
			Message: fmt.Sprintf("Eval failed: %v", err),
		}
	}

	se.SyncOutputToVariables()

	return &core.CommandResult{
		Success: true,
		Message: "Eval completed",
	}
}

// extractJS strips a ${...} wrapper.
func extractJS(script string) string {
	script = strings.TrimSpace(script)
	if strings.HasPrefix(script, "${") && strings.HasSuffix(script, "}") {
		return script[2 : len(script)-1]
	}
	return script
}

// ExecuteAssertTrue handles assertTrue step.
func (se *ScriptEngine) ExecuteAssertTrue(step *flow.AssertTrueStep) *core.CommandResult {
	result, err := se.EvalCondition(step.Script)
	if err != nil {
		return &core.CommandResult{
			Success: false,
			Error:   err,
			Message: fmt.Sprintf("Assertion evaluation failed: %v", err),
		}
	}

	if !result {
		return &core.CommandResult{
			Success: false,
			Error:   core.ErrConditionNotMet.WithMessage("assertion failed: " + step.Script),
			Message: fmt.Sprintf("assertTrue failed: %s", step.Script),
		}
	}

	return &core.CommandResult{
		Success: true,
		Message: "Assertion passed",
	}
}

// CheckCondition evaluates a flow.Condition and returns true if met.
// Visibility checks run through the driver with its usual waiting.
func (se *ScriptEngine) CheckCondition(ctx context.Context, cond flow.Condition, driver core.Driver) bool {
	if cond.Visible != nil {
		step := &flow.AssertVisibleStep{
			BaseStep: flow.BaseStep{StepType: flow.StepAssertVisible},
			Selector: se.expandSelector(*cond.Visible),
		}
		if !driver.Execute(ctx, step).Success {
			return false
		}
	}

	if cond.NotVisible != nil {
		step := &flow.AssertNotVisibleStep{
			BaseStep: flow.BaseStep{StepType: flow.StepAssertNotVisible},
			Selector: se.expandSelector(*cond.NotVisible),
		}
		if !driver.Execute(ctx, step).Success {
			return false
		}
	}

	if cond.Script != "" {
		result, err := se.EvalCondition(cond.Script)
		if err != nil || !result {
			return false
		}
	}

	return true
}

// withEnvVars applies environment variables and returns a restore function.
func (se *ScriptEngine) withEnvVars(env map[string]string) func() {
	oldVars := make(map[string]string)
	for k, v := range env {
		oldVars[k] = se.GetVariable(k)
		se.SetVariable(k, se.ExpandVariables(v))
	}
	return func() {
		for k, v := range oldVars {
			se.SetVariable(k, v)
		}
	}
}

// ParseInt parses an integer from string, supporting variable expansion.
func (se *ScriptEngine) ParseInt(s string, defaultVal int) int {
	s = se.ExpandVariables(s)
	s = strings.ReplaceAll(s, "_", "") // Support 10_000 format
	if val, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return val
	}
	return defaultVal
}

// ExpandStep returns a copy of step with variables expanded in its string
// fields. Steps are shared between subjects, so the original is never
// modified. Steps without expandable fields are returned as is.
func (se *ScriptEngine) ExpandStep(step flow.Step) flow.Step {
	x := se.ExpandVariables

	switch s := step.(type) {
	case *flow.NavigateStep:
		c := *s
		c.URL = x(c.URL)
		return &c
	case *flow.ClickStep:
		c := *s
		c.Selector = se.expandSelector(c.Selector)
		return &c
	case *flow.SetInputStep:
		c := *s
		c.Selector = se.expandSelector(c.Selector)
		c.Value = x(c.Value)
		c.Field = x(c.Field)
		return &c
	case *flow.SelectOptionStep:
		c := *s
		c.Selector = se.expandSelector(c.Selector)
		c.Option = x(c.Option)
		c.Value = x(c.Value)
		c.Candidates = se.expandAll(c.Candidates)
		return &c
	case *flow.AssertVisibleStep:
		c := *s
		c.Selector = se.expandSelector(c.Selector)
		return &c
	case *flow.AssertNotVisibleStep:
		c := *s
		c.Selector = se.expandSelector(c.Selector)
		return &c
	case *flow.AssertTextStep:
		c := *s
		c.Selector = se.expandSelector(c.Selector)
		c.Equals = x(c.Equals)
		c.Contains = x(c.Contains)
		return &c
	case *flow.AssertValidationStep:
		c := *s
		c.Contains = se.expandAll(c.Contains)
		return &c
	case *flow.AssertToastStep:
		c := *s
		c.Heading = x(c.Heading)
		c.Contains = x(c.Contains)
		return &c
	case *flow.WaitForModalCloseStep:
		c := *s
		c.Selector = se.expandSelector(c.Selector)
		return &c
	case *flow.WaitForRowStep:
		c := *s
		c.Row = se.expandRow(c.Row)
		return &c
	case *flow.WaitForRowRemovedStep:
		c := *s
		c.Row = se.expandRow(c.Row)
		return &c
	case *flow.VerifyDeletedStep:
		c := *s
		c.Row = se.expandRow(c.Row)
		return &c
	case *flow.DeleteRowStep:
		c := *s
		c.Row = se.expandRow(c.Row)
		c.Button = x(c.Button)
		c.Modal = x(c.Modal)
		c.Confirm = x(c.Confirm)
		return &c
	case *flow.SleepStep:
		c := *s
		c.Duration = x(c.Duration)
		return &c
	case *flow.CaptureQueryParamStep:
		c := *s
		c.Selector = se.expandSelector(c.Selector)
		c.Param = x(c.Param)
		return &c
	case *flow.LoginStep:
		c := *s
		c.User = x(c.User)
		c.Password = x(c.Password)
		return &c
	case *flow.SelectRoleStep:
		c := *s
		c.Program = x(c.Program)
		c.Role = x(c.Role)
		return &c
	case *flow.SearchCaseStep:
		c := *s
		c.PC1ID = x(c.PC1ID)
		return &c
	case *flow.OpenFormStep:
		c := *s
		c.Selector = se.expandSelector(c.Selector)
		c.Form = x(c.Form)
		c.Expect = x(c.Expect)
		return &c
	case *flow.TakeScreenshotStep:
		c := *s
		c.Path = x(c.Path)
		return &c
	}
	return step
}

func (se *ScriptEngine) expandAll(values []string) []string {
	if len(values) == 0 {
		return values
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = se.ExpandVariables(v)
	}
	return out
}

func (se *ScriptEngine) expandSelector(sel flow.Selector) flow.Selector {
	sel.CSS = se.ExpandVariables(sel.CSS)
	sel.Description = se.ExpandVariables(sel.Description)
	return sel
}

func (se *ScriptEngine) expandRow(row flow.RowSelector) flow.RowSelector {
	row.Form = se.ExpandVariables(row.Form)
	row.Grid = se.ExpandVariables(row.Grid)
	row.Link = se.ExpandVariables(row.Link)
	row.Param = se.ExpandVariables(row.Param)
	row.Key = se.ExpandVariables(row.Key)
	row.Text = se.expandAll(row.Text)
	return row
}
