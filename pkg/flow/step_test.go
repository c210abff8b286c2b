package flow

import "testing"

func TestBaseStep_Accessors(t *testing.T) {
	b := BaseStep{StepType: StepClick, Optional: true, StepLabel: "save", TimeoutMs: 1500}
	if b.Type() != StepClick {
		t.Errorf("Type()=%v, want %v", b.Type(), StepClick)
	}
	if !b.IsOptional() {
		t.Error("IsOptional()=false, want true")
	}
	if b.Label() != "save" {
		t.Errorf("Label()=%q, want save", b.Label())
	}
	if b.Timeout() != 1500 {
		t.Errorf("Timeout()=%d, want 1500", b.Timeout())
	}
	if b.Describe() != "click" {
		t.Errorf("Describe()=%q, want click", b.Describe())
	}
}

func TestUnsupportedStep_Describe(t *testing.T) {
	s := UnsupportedStep{
		BaseStep: BaseStep{StepType: "unknownCommand"},
		Reason:   "not implemented",
	}

	expected := "unknownCommand (unsupported: not implemented)"
	if got := s.Describe(); got != expected {
		t.Errorf("Describe()=%q, want %q", got, expected)
	}
}

func TestStep_Describe(t *testing.T) {
	sel := Selector{CSS: "#ddlQ1", Description: "Question 1"}
	tests := []struct {
		step     Step
		expected string
	}{
		{&NavigateStep{URL: "/Pages/Welcome.aspx"}, "navigate: /Pages/Welcome.aspx"},
		{&ClickStep{Selector: sel}, `click: "Question 1"`},
		{&SetInputStep{Selector: Selector{CSS: "#txtDate"}, Value: "10/25/25"}, `setInput: #txtDate = "10/25/25"`},
		{&SetInputStep{Selector: sel, Field: "Date", Value: "x"}, `setInput: Date = "x"`},
		{&SelectOptionStep{Selector: sel, Option: "Never"}, `selectOption: "Question 1" = "Never"`},
		{&SelectOptionStep{Selector: sel, Candidates: []string{"A", "B"}}, `selectOption: "Question 1" = one of ["A" "B"]`},
		{&AssertTextStep{Selector: sel, Equals: "7"}, `assertText: "Question 1" == "7"`},
		{&AssertTextStep{Selector: sel, Contains: "7"}, `assertText: "Question 1" contains "7"`},
		{&AssertValidationStep{Contains: []string{"a", "b"}}, "assertValidation: a; b"},
		{&AssertValidationStep{Absent: true}, "assertValidation: none"},
		{&AssertToastStep{Contains: "Saved"}, "assertToast: Saved"},
		{&AssertToastStep{BaseStep: BaseStep{StepType: StepAssertToast}}, "assertToast"},
		{&VerifyDeletedStep{Row: RowSelector{Param: "AuditCPK", Key: "9"}}, "verifyDeleted: AuditCPK=9"},
		{&DeleteRowStep{Row: RowSelector{Text: []string{"EC1", "Smith"}}}, "deleteRow: EC1, Smith"},
		{&SleepStep{Duration: "250ms"}, "sleep: 250ms"},
		{&CaptureQueryParamStep{Param: "AuditCPK", Variable: "PK"}, "captureQueryParam: AuditCPK -> PK"},
		{&SelectRoleStep{Program: "Program 1", Role: "DataEntry"}, "selectRole: Program 1 / DataEntry"},
		{&SearchCaseStep{}, "searchCase"},
		{&SearchCaseStep{PC1ID: "EC1"}, "searchCase: EC1"},
		{&RunFlowStep{File: "a.yaml"}, "runFlow: a.yaml"},
		{&TakeScreenshotStep{Path: "x"}, "takeScreenshot: x"},
	}

	for _, tt := range tests {
		if got := tt.step.Describe(); got != tt.expected {
			t.Errorf("Describe()=%q, want %q", got, tt.expected)
		}
	}
}

func TestSetInputStep_FieldName(t *testing.T) {
	s := &SetInputStep{Selector: Selector{CSS: "#txtDate", Description: "Visit date"}}
	if s.FieldName() != "Visit date" {
		t.Errorf("FieldName()=%q, want Visit date", s.FieldName())
	}
	s.Field = "Date"
	if s.FieldName() != "Date" {
		t.Errorf("FieldName()=%q, want Date", s.FieldName())
	}
}

func TestRunScriptStep_ScriptPath(t *testing.T) {
	if got := (&RunScriptStep{Script: "a.js"}).ScriptPath(); got != "a.js" {
		t.Errorf("ScriptPath()=%q", got)
	}
	if got := (&RunScriptStep{Script: "a.js", File: "b.js"}).ScriptPath(); got != "b.js" {
		t.Errorf("ScriptPath()=%q", got)
	}
}

func TestCondition_IsEmpty(t *testing.T) {
	if !(&Condition{}).IsEmpty() {
		t.Error("zero condition should be empty")
	}
	if (&Condition{Script: "true"}).IsEmpty() {
		t.Error("script condition should not be empty")
	}
}

func TestStepDefs_CoverAllTypes(t *testing.T) {
	for stepType, def := range stepDefs {
		step := def.newStep()
		if step == nil {
			t.Errorf("%s: newStep returned nil", stepType)
			continue
		}
		if def.bind != nil {
			def.bind(step, "x")
		}
		if !isStepType(string(stepType)) {
			t.Errorf("%s not recognised as a step type", stepType)
		}
	}
}
