package report

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/pookie-qa/pookie-runner/pkg/flow"
)

// BuilderConfig contains configuration for building the report skeleton.
type BuilderConfig struct {
	OutputDir     string  // Base output directory for reports
	Browser       Browser // Browser information
	App           App     // Application information
	CI            *CI     // CI/CD information (optional)
	RunnerVersion string
	DriverName    string // selenium, playwright
}

// Target is one scheduled flow run: a flow bound to the subject (PC1 id)
// whose browser session executes it. Subject may be empty.
type Target struct {
	Flow    flow.Flow
	Subject string
}

// BuildSkeleton creates the initial report structure with every flow and
// command pending. Call it after validation, before execution starts.
func BuildSkeleton(targets []Target, cfg BuilderConfig) (*Index, []FlowDetail, error) {
	now := time.Now()

	index := &Index{
		Version:     Version,
		RunID:       uuid.NewString(),
		Status:      StatusPending,
		StartTime:   now,
		LastUpdated: now,
		Browser:     cfg.Browser,
		App:         cfg.App,
		CI:          cfg.CI,
		Runner: RunnerInfo{
			Version: cfg.RunnerVersion,
			Driver:  cfg.DriverName,
		},
		Summary: Summary{
			Total:   len(targets),
			Pending: len(targets),
		},
		Flows: make([]FlowEntry, len(targets)),
	}

	flowDetails := make([]FlowDetail, len(targets))

	for i, t := range targets {
		flowID := fmt.Sprintf("flow-%03d", i)
		flowName := FlowName(t.Flow)
		commands := buildCommands(t.Flow.Steps)

		index.Flows[i] = FlowEntry{
			Index:      i,
			ID:         flowID,
			Name:       flowName,
			Subject:    t.Subject,
			SourceFile: t.Flow.SourcePath,
			DataFile:   filepath.Join("flows", flowID+".json"),
			AssetsDir:  filepath.Join("assets", flowID),
			Status:     StatusPending,
			Commands: CommandSummary{
				Total:   len(commands),
				Pending: len(commands),
			},
		}

		flowDetails[i] = FlowDetail{
			ID:         flowID,
			Name:       flowName,
			Subject:    t.Subject,
			SourceFile: t.Flow.SourcePath,
			Tags:       t.Flow.Config.Tags,
			Commands:   commands,
		}
	}

	return index, flowDetails, nil
}

// FlowName returns the configured flow name, or the file name without its
// extension.
func FlowName(f flow.Flow) string {
	if f.Config.Name != "" {
		return f.Config.Name
	}
	base := filepath.Base(f.SourcePath)
	return base[:len(base)-len(filepath.Ext(base))]
}

// buildCommands creates Command entries from flow steps.
func buildCommands(steps []flow.Step) []Command {
	commands := make([]Command, len(steps))
	for i, step := range steps {
		commands[i] = Command{
			ID:       fmt.Sprintf("cmd-%03d", i),
			Index:    i,
			Type:     string(step.Type()),
			Label:    step.Label(),
			YAML:     step.Describe(),
			Status:   StatusPending,
			Optional: step.IsOptional(),
			Params:   extractParams(step),
		}
	}
	return commands
}

// extractParams extracts the parameters worth showing next to a command.
func extractParams(step flow.Step) *CommandParams {
	params := &CommandParams{}
	hasContent := false

	if sel := extractSelector(step); sel != nil {
		params.Selector = sel
		hasContent = true
	}

	switch s := step.(type) {
	case *flow.SetInputStep:
		params.Value = s.Value
		hasContent = true
	case *flow.SelectOptionStep:
		params.Option, params.Value = s.Option, s.Value
		hasContent = s.Option != "" || s.Value != "" || hasContent
	case *flow.OpenFormStep:
		if s.Form != "" {
			params.Form = s.Form
			hasContent = true
		}
	case *flow.WaitForRowStep:
		params.Form = s.Row.Form
		hasContent = hasContent || s.Row.Form != ""
	case *flow.WaitForRowRemovedStep:
		params.Form = s.Row.Form
		hasContent = hasContent || s.Row.Form != ""
	case *flow.VerifyDeletedStep:
		params.Form = s.Row.Form
		hasContent = hasContent || s.Row.Form != ""
	case *flow.DeleteRowStep:
		params.Form = s.Row.Form
		hasContent = hasContent || s.Row.Form != ""
	}

	if ms := step.Timeout(); ms > 0 {
		params.Timeout = ms
		hasContent = true
	}

	if !hasContent {
		return nil
	}
	return params
}

// extractSelector extracts the selector of steps that target one element.
func extractSelector(step flow.Step) *Selector {
	var sel *flow.Selector

	switch s := step.(type) {
	case *flow.ClickStep:
		sel = &s.Selector
	case *flow.SetInputStep:
		sel = &s.Selector
	case *flow.SelectOptionStep:
		sel = &s.Selector
	case *flow.AssertVisibleStep:
		sel = &s.Selector
	case *flow.AssertNotVisibleStep:
		sel = &s.Selector
	case *flow.AssertTextStep:
		sel = &s.Selector
	case *flow.WaitForModalCloseStep:
		sel = &s.Selector
	case *flow.CaptureQueryParamStep:
		sel = &s.Selector
	case *flow.OpenFormStep:
		sel = &s.Selector
	default:
		return nil
	}

	if sel.IsEmpty() {
		return nil
	}
	return &Selector{CSS: sel.CSS, Description: sel.Description, PageOnly: sel.PageOnly}
}

// WriteSkeleton writes report.json and every flow detail file, and creates
// the assets directories.
func WriteSkeleton(outputDir string, index *Index, flowDetails []FlowDetail) error {
	if err := ensureDir(filepath.Join(outputDir, "flows")); err != nil {
		return fmt.Errorf("create flows dir: %w", err)
	}
	if err := ensureDir(filepath.Join(outputDir, "assets")); err != nil {
		return fmt.Errorf("create assets dir: %w", err)
	}

	for _, fd := range flowDetails {
		flowPath := filepath.Join(outputDir, "flows", fd.ID+".json")
		if err := atomicWriteJSON(flowPath, fd); err != nil {
			return fmt.Errorf("write flow %s: %w", fd.ID, err)
		}
		if err := ensureDir(filepath.Join(outputDir, "assets", fd.ID)); err != nil {
			return fmt.Errorf("create assets dir for %s: %w", fd.ID, err)
		}
	}

	if err := atomicWriteJSON(filepath.Join(outputDir, "report.json"), index); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}
