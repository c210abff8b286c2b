package flow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pookie-qa/pookie-runner/pkg/logger"
	"gopkg.in/yaml.v3"
)

// ParseError represents a parsing error with location info.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ParseFile parses a single YAML flow file.
func ParseFile(path string) (*Flow, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided flow file
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path)
}

// Parse parses flow YAML content.
func Parse(data []byte, sourcePath string) (*Flow, error) {
	parts := splitYAMLDocuments(string(data))

	flow := &Flow{
		SourcePath: sourcePath,
	}

	if len(parts) == 0 {
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    1,
			Message: "empty flow file",
		}
	}

	if len(parts) == 1 {
		if err := parseSteps(parts[0], flow); err != nil {
			return nil, err
		}
	} else {
		if err := parseConfig(parts[0], flow); err != nil {
			return nil, err
		}
		if err := parseSteps(parts[1], flow); err != nil {
			return nil, err
		}
	}

	return flow, nil
}

func splitYAMLDocuments(content string) []string {
	var parts []string
	var current strings.Builder
	inMultiline := false
	multilineIndent := 0

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if !inMultiline {
			if strings.HasSuffix(trimmed, "|") || strings.HasSuffix(trimmed, ">") ||
				strings.HasSuffix(trimmed, "|-") || strings.HasSuffix(trimmed, ">-") {
				inMultiline = true
				if i+1 < len(lines) {
					next := lines[i+1]
					multilineIndent = len(next) - len(strings.TrimLeft(next, " \t"))
				}
			}
		} else {
			indent := len(line) - len(strings.TrimLeft(line, " \t"))
			if trimmed != "" && indent < multilineIndent {
				inMultiline = false
			}
		}

		if !inMultiline && trimmed == "---" && strings.TrimLeft(line, " \t") == "---" {
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		} else {
			current.WriteString(line)
			current.WriteString("\n")
		}
	}

	if current.Len() > 0 {
		s := strings.TrimSpace(current.String())
		if s != "" {
			parts = append(parts, current.String())
		}
	}

	return parts
}

func parseConfig(content string, flow *Flow) error {
	var config Config
	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return &ParseError{
			Path:    flow.SourcePath,
			Message: fmt.Sprintf("invalid config: %v", err),
		}
	}

	// Parse lifecycle hooks (onFlowStart, onFlowComplete)
	var rawConfig struct {
		OnFlowStart    []yaml.Node `yaml:"onFlowStart"`
		OnFlowComplete []yaml.Node `yaml:"onFlowComplete"`
	}
	if err := yaml.Unmarshal([]byte(content), &rawConfig); err != nil {
		return &ParseError{
			Path:    flow.SourcePath,
			Message: fmt.Sprintf("invalid config: %v", err),
		}
	}

	for _, node := range rawConfig.OnFlowStart {
		step, err := parseStep(&node, flow.SourcePath)
		if err != nil {
			return err
		}
		config.OnFlowStart = append(config.OnFlowStart, step)
	}

	for _, node := range rawConfig.OnFlowComplete {
		step, err := parseStep(&node, flow.SourcePath)
		if err != nil {
			return err
		}
		config.OnFlowComplete = append(config.OnFlowComplete, step)
	}

	flow.Config = config
	return nil
}

func parseSteps(content string, flow *Flow) error {
	var rawSteps []yaml.Node
	if err := yaml.Unmarshal([]byte(content), &rawSteps); err != nil {
		return &ParseError{
			Path:    flow.SourcePath,
			Message: fmt.Sprintf("invalid steps: %v", err),
		}
	}

	for _, node := range rawSteps {
		step, err := parseStep(&node, flow.SourcePath)
		if err != nil {
			return err
		}
		flow.Steps = append(flow.Steps, step)
	}

	return nil
}

func parseStep(node *yaml.Node, sourcePath string) (Step, error) {
	// Handle scalar nodes like "- openFormsTab" (no colon, no params)
	if node.Kind == yaml.ScalarNode {
		stepType := node.Value
		if !isStepType(stepType) {
			return nil, &ParseError{
				Path:    sourcePath,
				Line:    node.Line,
				Message: fmt.Sprintf("unknown step type: %s", stepType),
			}
		}
		// Create empty value node for steps with no parameters
		emptyNode := &yaml.Node{Kind: yaml.MappingNode}
		return decodeStep(StepType(stepType), emptyNode, sourcePath)
	}

	if node.Kind != yaml.MappingNode {
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    node.Line,
			Message: "step must be a mapping or command name",
		}
	}

	stepType, valueNode := extractStepType(node)
	if stepType == "" || valueNode == nil {
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    node.Line,
			Message: "unknown step type",
		}
	}

	return decodeStep(StepType(stepType), valueNode, sourcePath)
}

func extractStepType(node *yaml.Node) (string, *yaml.Node) {
	for i := 0; i < len(node.Content)-1; i += 2 {
		key := node.Content[i].Value
		if isStepType(key) {
			return key, node.Content[i+1]
		}
	}
	return "", nil
}

// stepDef describes how a step type is built. bind sets the step's primary
// field from the scalar shorthand ("- click: a.save"); nil means the step
// takes no scalar form.
type stepDef struct {
	newStep func() Step
	bind    func(Step, string)
}

func bindSelector(sel func(Step) *Selector) func(Step, string) {
	return func(s Step, v string) { sel(s).CSS = v }
}

var stepDefs = map[StepType]stepDef{
	StepNavigate: {
		newStep: func() Step { return &NavigateStep{} },
		bind:    func(s Step, v string) { s.(*NavigateStep).URL = v },
	},
	StepClick: {
		newStep: func() Step { return &ClickStep{} },
		bind:    bindSelector(func(s Step) *Selector { return &s.(*ClickStep).Selector }),
	},
	StepSetInput: {
		newStep: func() Step { return &SetInputStep{} },
	},
	StepSelectOption: {
		newStep: func() Step { return &SelectOptionStep{} },
	},
	StepAssertVisible: {
		newStep: func() Step { return &AssertVisibleStep{} },
		bind:    bindSelector(func(s Step) *Selector { return &s.(*AssertVisibleStep).Selector }),
	},
	StepAssertNotVisible: {
		newStep: func() Step { return &AssertNotVisibleStep{} },
		bind:    bindSelector(func(s Step) *Selector { return &s.(*AssertNotVisibleStep).Selector }),
	},
	StepAssertText: {
		newStep: func() Step { return &AssertTextStep{} },
	},
	StepAssertValidation: {
		newStep: func() Step { return &AssertValidationStep{} },
		bind: func(s Step, v string) {
			s.(*AssertValidationStep).Contains = []string{v}
		},
	},
	StepAssertToast: {
		newStep: func() Step { return &AssertToastStep{} },
		bind:    func(s Step, v string) { s.(*AssertToastStep).Contains = v },
	},
	StepAssertTrue: {
		newStep: func() Step { return &AssertTrueStep{} },
		bind:    func(s Step, v string) { s.(*AssertTrueStep).Script = v },
	},
	StepWaitForReady: {
		newStep: func() Step { return &WaitForReadyStep{} },
	},
	StepWaitForModalClose: {
		newStep: func() Step { return &WaitForModalCloseStep{} },
		bind:    bindSelector(func(s Step) *Selector { return &s.(*WaitForModalCloseStep).Selector }),
	},
	StepWaitForRow: {
		newStep: func() Step { return &WaitForRowStep{} },
		bind:    func(s Step, v string) { s.(*WaitForRowStep).Row.Key = v },
	},
	StepWaitForRowRemoved: {
		newStep: func() Step { return &WaitForRowRemovedStep{} },
		bind:    func(s Step, v string) { s.(*WaitForRowRemovedStep).Row.Key = v },
	},
	StepVerifyDeleted: {
		newStep: func() Step { return &VerifyDeletedStep{} },
		bind:    func(s Step, v string) { s.(*VerifyDeletedStep).Row.Key = v },
	},
	StepDeleteRow: {
		newStep: func() Step { return &DeleteRowStep{} },
		bind:    func(s Step, v string) { s.(*DeleteRowStep).Row.Key = v },
	},
	StepSleep: {
		newStep: func() Step { return &SleepStep{} },
		bind:    func(s Step, v string) { s.(*SleepStep).Duration = v },
	},
	StepCaptureQueryParam: {
		newStep: func() Step { return &CaptureQueryParamStep{} },
	},
	StepLogin: {
		newStep: func() Step { return &LoginStep{} },
		bind:    func(s Step, v string) { s.(*LoginStep).User = v },
	},
	StepSelectRole: {
		newStep: func() Step { return &SelectRoleStep{} },
		bind:    func(s Step, v string) { s.(*SelectRoleStep).Role = v },
	},
	StepSearchCase: {
		newStep: func() Step { return &SearchCaseStep{} },
		bind:    func(s Step, v string) { s.(*SearchCaseStep).PC1ID = v },
	},
	StepOpenFormsTab: {
		newStep: func() Step { return &OpenFormsTabStep{} },
	},
	StepOpenForm: {
		newStep: func() Step { return &OpenFormStep{} },
		bind:    bindSelector(func(s Step) *Selector { return &s.(*OpenFormStep).Selector }),
	},
	StepRunScript: {
		newStep: func() Step { return &RunScriptStep{} },
		bind:    func(s Step, v string) { s.(*RunScriptStep).Script = v },
	},
	StepEvalScript: {
		newStep: func() Step { return &EvalScriptStep{} },
		bind:    func(s Step, v string) { s.(*EvalScriptStep).Script = v },
	},
	StepTakeScreenshot: {
		newStep: func() Step { return &TakeScreenshotStep{} },
		bind:    func(s Step, v string) { s.(*TakeScreenshotStep).Path = v },
	},
}

func isStepType(key string) bool {
	switch StepType(key) {
	case StepRepeat, StepRetry, StepRunFlow, StepDefineVariables:
		return true
	}
	_, ok := stepDefs[StepType(key)]
	return ok
}

func decodeStep(stepType StepType, valueNode *yaml.Node, sourcePath string) (Step, error) {
	switch stepType {
	case StepRepeat:
		return parseRepeatStep(valueNode, sourcePath)
	case StepRetry:
		return parseRetryStep(valueNode, sourcePath)
	case StepRunFlow:
		return parseRunFlowStep(valueNode, sourcePath)
	case StepDefineVariables:
		s := &DefineVariablesStep{Env: make(map[string]string)}
		if valueNode.Kind == yaml.MappingNode {
			for i := 0; i < len(valueNode.Content)-1; i += 2 {
				s.Env[valueNode.Content[i].Value] = valueNode.Content[i+1].Value
			}
		}
		s.StepType = stepType
		return s, nil
	}

	def, ok := stepDefs[stepType]
	if !ok {
		return &UnsupportedStep{
			BaseStep: BaseStep{StepType: stepType},
			Reason:   "unknown step type",
		}, nil
	}

	step := def.newStep()
	switch {
	case valueNode.Kind == yaml.ScalarNode && valueNode.Tag == "!!null":
		// "- openFormsTab:" with no value
	case valueNode.Kind == yaml.ScalarNode:
		if def.bind == nil {
			return nil, &ParseError{
				Path:    sourcePath,
				Line:    valueNode.Line,
				Message: fmt.Sprintf("%s requires a mapping", stepType),
			}
		}
		def.bind(step, valueNode.Value)
	default:
		if err := valueNode.Decode(step); err != nil {
			return nil, wrapParseError(sourcePath, valueNode.Line, err)
		}
	}
	step.(interface{ base() *BaseStep }).base().StepType = stepType
	return step, nil
}

// parseRepeatStep handles repeat with nested commands.
func parseRepeatStep(valueNode *yaml.Node, sourcePath string) (Step, error) {
	var raw struct {
		Times    string      `yaml:"times"` // String for variable support
		While    Condition   `yaml:"while"`
		Commands []yaml.Node `yaml:"commands"`
		Optional bool        `yaml:"optional"`
		Label    string      `yaml:"label"`
	}

	if err := valueNode.Decode(&raw); err != nil {
		return nil, wrapParseError(sourcePath, valueNode.Line, err)
	}

	s := &RepeatStep{
		BaseStep: BaseStep{
			StepType:  StepRepeat,
			Optional:  raw.Optional,
			StepLabel: raw.Label,
		},
		Times: raw.Times,
		While: raw.While,
	}

	for _, cmdNode := range raw.Commands {
		step, err := parseStep(&cmdNode, sourcePath)
		if err != nil {
			return nil, err
		}
		s.Steps = append(s.Steps, step)
	}

	return s, nil
}

// parseRetryStep handles retry with nested commands.
func parseRetryStep(valueNode *yaml.Node, sourcePath string) (Step, error) {
	var raw struct {
		MaxRetries string            `yaml:"maxRetries"` // String for variable support
		Commands   []yaml.Node       `yaml:"commands"`
		File       string            `yaml:"file"`
		Env        map[string]string `yaml:"env"`
		Optional   bool              `yaml:"optional"`
		Label      string            `yaml:"label"`
	}

	if err := valueNode.Decode(&raw); err != nil {
		return nil, wrapParseError(sourcePath, valueNode.Line, err)
	}

	s := &RetryStep{
		BaseStep: BaseStep{
			StepType:  StepRetry,
			Optional:  raw.Optional,
			StepLabel: raw.Label,
		},
		MaxRetries: raw.MaxRetries,
		File:       raw.File,
		Env:        raw.Env,
	}

	for _, cmdNode := range raw.Commands {
		step, err := parseStep(&cmdNode, sourcePath)
		if err != nil {
			return nil, err
		}
		s.Steps = append(s.Steps, step)
	}

	return s, nil
}

// parseRunFlowStep handles runFlow with optional nested commands.
func parseRunFlowStep(valueNode *yaml.Node, sourcePath string) (Step, error) {
	s := &RunFlowStep{BaseStep: BaseStep{StepType: StepRunFlow}}

	if valueNode.Kind == yaml.ScalarNode {
		s.File = valueNode.Value
		return s, nil
	}

	var raw struct {
		File     string            `yaml:"file"`
		Commands []yaml.Node       `yaml:"commands"`
		When     *Condition        `yaml:"when"`
		Env      map[string]string `yaml:"env"`
		Optional bool              `yaml:"optional"`
		Label    string            `yaml:"label"`
	}

	if err := valueNode.Decode(&raw); err != nil {
		return nil, wrapParseError(sourcePath, valueNode.Line, err)
	}

	s.File = raw.File
	s.When = raw.When
	s.Env = raw.Env
	s.Optional = raw.Optional
	s.StepLabel = raw.Label

	for _, cmdNode := range raw.Commands {
		step, err := parseStep(&cmdNode, sourcePath)
		if err != nil {
			return nil, err
		}
		s.Steps = append(s.Steps, step)
	}

	return s, nil
}

func wrapParseError(path string, line int, err error) error {
	return &ParseError{
		Path:    path,
		Line:    line,
		Message: err.Error(),
	}
}

// ParseDirectory parses all YAML files in a directory.
func ParseDirectory(dir string, includeTags, excludeTags []string) ([]*Flow, error) {
	var flows []*Flow

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		flow, parseErr := ParseFile(path)
		if parseErr != nil {
			logger.Warn("skipping %s: %v", path, parseErr)
			return nil
		}

		if ShouldIncludeFlow(flow, includeTags, excludeTags) {
			flows = append(flows, flow)
		}
		return nil
	})

	return flows, err
}

// ShouldIncludeFlow checks if a flow matches tag filters.
func ShouldIncludeFlow(flow *Flow, includeTags, excludeTags []string) bool {
	if len(includeTags) > 0 {
		hasTag := false
		for _, tag := range flow.Config.Tags {
			for _, include := range includeTags {
				if tag == include {
					hasTag = true
					break
				}
			}
		}
		if !hasTag {
			return false
		}
	}

	for _, tag := range flow.Config.Tags {
		for _, exclude := range excludeTags {
			if tag == exclude {
				return false
			}
		}
	}

	return true
}
