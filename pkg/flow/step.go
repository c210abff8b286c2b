package flow

import (
	"fmt"
	"strings"
)

// StepType represents the type of step.
type StepType string

// Step type constants.
const (
	// Navigation & Interaction
	StepNavigate     StepType = "navigate"
	StepClick        StepType = "click"
	StepSetInput     StepType = "setInput"
	StepSelectOption StepType = "selectOption"

	// Assertions
	StepAssertVisible    StepType = "assertVisible"
	StepAssertNotVisible StepType = "assertNotVisible"
	StepAssertText       StepType = "assertText"
	StepAssertValidation StepType = "assertValidation"
	StepAssertToast      StepType = "assertToast"
	StepAssertTrue       StepType = "assertTrue"

	// Waits
	StepWaitForReady      StepType = "waitForReady"
	StepWaitForModalClose StepType = "waitForModalClose"
	StepWaitForRow        StepType = "waitForRow"
	StepWaitForRowRemoved StepType = "waitForRowRemoved"
	StepVerifyDeleted     StepType = "verifyDeleted"
	StepDeleteRow         StepType = "deleteRow"
	StepSleep             StepType = "sleep"

	// Data capture
	StepCaptureQueryParam StepType = "captureQueryParam"

	// Application navigation
	StepLogin        StepType = "login"
	StepSelectRole   StepType = "selectRole"
	StepSearchCase   StepType = "searchCase"
	StepOpenFormsTab StepType = "openFormsTab"
	StepOpenForm     StepType = "openForm"

	// Flow Control
	StepRepeat     StepType = "repeat"
	StepRetry      StepType = "retry"
	StepRunFlow    StepType = "runFlow"
	StepRunScript  StepType = "runScript"
	StepEvalScript StepType = "evalScript"

	// Media
	StepTakeScreenshot StepType = "takeScreenshot"

	// Other
	StepDefineVariables StepType = "defineVariables"
)

// Step is the interface for all flow steps.
type Step interface {
	Type() StepType
	IsOptional() bool
	Label() string
	Describe() string
	// Timeout returns the per-step timeout override in ms, 0 for default.
	Timeout() int
}

// BaseStep contains common fields for all steps.
type BaseStep struct {
	StepType  StepType `yaml:"-"`
	Optional  bool     `yaml:"optional"`
	StepLabel string   `yaml:"label"`
	TimeoutMs int      `yaml:"timeout"`
}

// Type returns the step type.
func (b *BaseStep) Type() StepType { return b.StepType }

// IsOptional returns whether the step is optional.
func (b *BaseStep) IsOptional() bool { return b.Optional }

// Label returns the step label.
func (b *BaseStep) Label() string { return b.StepLabel }

// Timeout returns the step timeout in ms.
func (b *BaseStep) Timeout() int { return b.TimeoutMs }

// Describe returns a human-readable description.
func (b *BaseStep) Describe() string { return string(b.StepType) }

func (b *BaseStep) base() *BaseStep { return b }

// ============================================
// Navigation & Interaction Steps
// ============================================

// NavigateStep loads a URL. Relative URLs resolve against the app URL.
type NavigateStep struct {
	BaseStep `yaml:",inline"`
	URL      string `yaml:"url"`
}

// ClickStep clicks an element, falling back to a script click.
type ClickStep struct {
	BaseStep  `yaml:",inline"`
	Selector  Selector `yaml:",inline"`
	WaitReady *bool    `yaml:"waitReady"` // Wait for postback after click (default true)
}

// SetInputStep sets a field value with the escalating setter.
type SetInputStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
	Value    string   `yaml:"value"`
	Field    string   `yaml:"field"` // Name used in failure messages
	Blur     *bool    `yaml:"blur"`  // Blur after setting (default true)
}

// SelectOptionStep selects a dropdown option.
type SelectOptionStep struct {
	BaseStep   `yaml:",inline"`
	Selector   Selector `yaml:",inline"`
	Option     string   `yaml:"option"`     // Visible text
	Value      string   `yaml:"value"`      // Value fallback
	Candidates []string `yaml:"candidates"` // Lenient alternatives, first match wins
}

// ============================================
// Assertion Steps
// ============================================

// AssertVisibleStep asserts element is visible.
type AssertVisibleStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
}

// AssertNotVisibleStep asserts element is not visible.
type AssertNotVisibleStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
}

// AssertTextStep asserts an element's text or value.
type AssertTextStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
	Equals   string   `yaml:"equals"`
	Contains string   `yaml:"contains"`
	Variable string   `yaml:"variable"` // Store the observed text
}

// AssertValidationStep asserts the validation summary.
type AssertValidationStep struct {
	BaseStep `yaml:",inline"`
	Contains []string `yaml:"contains"`
	Absent   bool     `yaml:"absent"` // Assert no validation message is shown
}

// AssertToastStep waits for a success toast.
type AssertToastStep struct {
	BaseStep `yaml:",inline"`
	Heading  string `yaml:"heading"`
	Contains string `yaml:"contains"`
	Any      bool   `yaml:"any"` // Accept any toast, not only success ones
}

// AssertTrueStep asserts a script condition is true.
type AssertTrueStep struct {
	BaseStep `yaml:",inline"`
	Script   string `yaml:"condition"`
}

// Condition represents a test condition.
type Condition struct {
	Visible    *Selector `yaml:"visible"`
	NotVisible *Selector `yaml:"notVisible"`
	Script     string    `yaml:"scriptCondition"`
}

// IsEmpty reports whether no condition is set.
func (c *Condition) IsEmpty() bool {
	return c.Visible == nil && c.NotVisible == nil && c.Script == ""
}

// ============================================
// Wait Steps
// ============================================

// WaitForReadyStep waits for the document and any partial postback.
type WaitForReadyStep struct {
	BaseStep `yaml:",inline"`
}

// WaitForModalCloseStep waits for a modal to hide or detach.
type WaitForModalCloseStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
}

// WaitForRowStep waits for a grid row.
type WaitForRowStep struct {
	BaseStep `yaml:",inline"`
	Row      RowSelector `yaml:",inline"`
}

// WaitForRowRemovedStep waits for a grid row to disappear.
type WaitForRowRemovedStep struct {
	BaseStep `yaml:",inline"`
	Row      RowSelector `yaml:",inline"`
}

// VerifyDeletedStep checks that a row seen earlier by waitForRow is gone.
type VerifyDeletedStep struct {
	BaseStep `yaml:",inline"`
	Row      RowSelector `yaml:",inline"`
}

// DeleteRowStep deletes a grid row through its delete button and the
// confirmation modal, then verifies the row is gone. The form's selectors
// fill whatever is not set.
type DeleteRowStep struct {
	BaseStep `yaml:",inline"`
	Row      RowSelector `yaml:",inline"`
	Button   string      `yaml:"button"`  // Delete control inside the row
	Modal    string      `yaml:"modal"`   // Confirmation modal
	Confirm  string      `yaml:"confirm"` // Confirm control inside the modal
	// CancelFirst dismisses the confirmation once and checks the row
	// survived before deleting for real.
	CancelFirst bool `yaml:"cancelFirst"`
}

// SleepStep pauses for a fixed duration.
type SleepStep struct {
	BaseStep `yaml:",inline"`
	Duration string `yaml:"duration"` // "500ms", "2s" or bare milliseconds
}

// ============================================
// Data Capture Steps
// ============================================

// CaptureQueryParamStep reads a query parameter from an element attribute
// into a variable.
type CaptureQueryParamStep struct {
	BaseStep  `yaml:",inline"`
	Selector  Selector `yaml:",inline"`
	Attribute string   `yaml:"attribute"` // Default "href"
	Param     string   `yaml:"param"`
	Variable  string   `yaml:"variable"`
}

// ============================================
// Application Navigation Steps
// ============================================

// LoginStep signs in with the configured or given credentials.
type LoginStep struct {
	BaseStep `yaml:",inline"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// SelectRoleStep picks a program and role after login.
type SelectRoleStep struct {
	BaseStep `yaml:",inline"`
	Program  string `yaml:"program"`
	Role     string `yaml:"role"`
}

// SearchCaseStep opens the case home page for a PC1 id.
type SearchCaseStep struct {
	BaseStep `yaml:",inline"`
	PC1ID    string `yaml:"pc1Id"`
}

// OpenFormsTabStep activates the Forms tab on the case home page.
type OpenFormsTabStep struct {
	BaseStep `yaml:",inline"`
}

// OpenFormStep clicks a form link inside the forms pane. Form names a
// known form ("AuditC", "HITS"); a bare value that is a form name works
// too.
type OpenFormStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
	Form     string   `yaml:"form"`
	// Expect is a URL fragment the resulting page must contain.
	Expect string `yaml:"expect"`
}

// ============================================
// Flow Control Steps
// ============================================

// RepeatStep repeats steps.
type RepeatStep struct {
	BaseStep `yaml:",inline"`
	Times    string    `yaml:"times"` // String for variable support
	While    Condition `yaml:"while"`
	Steps    []Step    `yaml:"-"`
}

// RetryStep retries steps on failure.
type RetryStep struct {
	BaseStep   `yaml:",inline"`
	MaxRetries string            `yaml:"maxRetries"` // String for variable support
	Steps      []Step            `yaml:"-"`
	File       string            `yaml:"file"`
	Env        map[string]string `yaml:"env"`
}

// RunFlowStep runs another flow.
type RunFlowStep struct {
	BaseStep `yaml:",inline"`
	File     string            `yaml:"file"`
	Steps    []Step            `yaml:"-"` // Inline steps
	When     *Condition        `yaml:"when"`
	Env      map[string]string `yaml:"env"`
}

// RunScriptStep runs a script.
type RunScriptStep struct {
	BaseStep `yaml:",inline"`
	Script   string            `yaml:"script"` // Script content or filename (string form)
	File     string            `yaml:"file"`   // Script filename (map form)
	Env      map[string]string `yaml:"env"`
}

// ScriptPath returns the script path (either Script or File field).
func (s *RunScriptStep) ScriptPath() string {
	if s.File != "" {
		return s.File
	}
	return s.Script
}

// EvalScriptStep evaluates JavaScript.
type EvalScriptStep struct {
	BaseStep `yaml:",inline"`
	Script   string `yaml:"script"`
}

// ============================================
// Media & Other Steps
// ============================================

// TakeScreenshotStep takes a screenshot.
type TakeScreenshotStep struct {
	BaseStep `yaml:",inline"`
	Path     string `yaml:"path"`
}

// DefineVariablesStep defines variables.
type DefineVariablesStep struct {
	BaseStep `yaml:",inline"`
	Env      map[string]string `yaml:"env"`
}

// UnsupportedStep represents an unsupported step.
type UnsupportedStep struct {
	BaseStep `yaml:",inline"`
	Reason   string
}

// Describe returns a description including the unsupported reason.
func (s *UnsupportedStep) Describe() string {
	return string(s.StepType) + " (unsupported: " + s.Reason + ")"
}

// ============================================
// Describe() implementations for detailed output
// ============================================

func (s *NavigateStep) Describe() string { return "navigate: " + s.URL }

func (s *ClickStep) Describe() string { return "click: " + s.Selector.DescribeQuoted() }

func (s *SetInputStep) Describe() string {
	return fmt.Sprintf("setInput: %s = %q", s.fieldName(), s.Value)
}

// FieldName returns the field name used in failure messages.
func (s *SetInputStep) FieldName() string { return s.fieldName() }

func (s *SetInputStep) fieldName() string {
	if s.Field != "" {
		return s.Field
	}
	return s.Selector.Describe()
}

func (s *SelectOptionStep) Describe() string {
	if s.Option == "" && len(s.Candidates) > 0 {
		return fmt.Sprintf("selectOption: %s = one of %q", s.Selector.DescribeQuoted(), s.Candidates)
	}
	return fmt.Sprintf("selectOption: %s = %q", s.Selector.DescribeQuoted(), s.Option)
}

func (s *AssertVisibleStep) Describe() string {
	return "assertVisible: " + s.Selector.DescribeQuoted()
}

func (s *AssertNotVisibleStep) Describe() string {
	return "assertNotVisible: " + s.Selector.DescribeQuoted()
}

func (s *AssertTextStep) Describe() string {
	switch {
	case s.Equals != "":
		return fmt.Sprintf("assertText: %s == %q", s.Selector.DescribeQuoted(), s.Equals)
	case s.Contains != "":
		return fmt.Sprintf("assertText: %s contains %q", s.Selector.DescribeQuoted(), s.Contains)
	}
	return "assertText: " + s.Selector.DescribeQuoted()
}

func (s *AssertValidationStep) Describe() string {
	if s.Absent {
		return "assertValidation: none"
	}
	return "assertValidation: " + strings.Join(s.Contains, "; ")
}

func (s *AssertToastStep) Describe() string {
	if s.Contains != "" {
		return "assertToast: " + s.Contains
	}
	return "assertToast"
}

func (s *WaitForModalCloseStep) Describe() string {
	return "waitForModalClose: " + s.Selector.DescribeQuoted()
}

func (s *WaitForRowStep) Describe() string { return "waitForRow: " + s.Row.Describe() }

func (s *WaitForRowRemovedStep) Describe() string {
	return "waitForRowRemoved: " + s.Row.Describe()
}

func (s *VerifyDeletedStep) Describe() string { return "verifyDeleted: " + s.Row.Describe() }

func (s *DeleteRowStep) Describe() string { return "deleteRow: " + s.Row.Describe() }

func (s *SleepStep) Describe() string { return "sleep: " + s.Duration }

func (s *CaptureQueryParamStep) Describe() string {
	return fmt.Sprintf("captureQueryParam: %s -> %s", s.Param, s.Variable)
}

func (s *SelectRoleStep) Describe() string {
	return fmt.Sprintf("selectRole: %s / %s", s.Program, s.Role)
}

func (s *SearchCaseStep) Describe() string {
	if s.PC1ID == "" {
		return "searchCase"
	}
	return "searchCase: " + s.PC1ID
}

func (s *OpenFormStep) Describe() string {
	if s.Form != "" {
		return "openForm: " + s.Form
	}
	return "openForm: " + s.Selector.DescribeQuoted()
}

func (s *RunFlowStep) Describe() string {
	if s.File != "" {
		return "runFlow: " + s.File
	}
	return "runFlow"
}

func (s *TakeScreenshotStep) Describe() string {
	if s.Path != "" {
		return "takeScreenshot: " + s.Path
	}
	return "takeScreenshot"
}
