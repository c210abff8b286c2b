package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/pookie-qa/pookie-runner/pkg/core"
	"github.com/pookie-qa/pookie-runner/pkg/flow"
	"github.com/pookie-qa/pookie-runner/pkg/jsengine"
	"github.com/pookie-qa/pookie-runner/pkg/report"
)

// LocateTimeoutSetter is implemented by drivers whose element lookup budget
// can be changed for one flow (flow config commandTimeout).
type LocateTimeoutSetter interface {
	SetLocateTimeout(time.Duration) time.Duration
}

// FlowRunner executes a single flow.
type FlowRunner struct {
	ctx         context.Context
	flow        flow.Flow
	detail      *report.FlowDetail
	driver      core.Driver
	config      RunnerConfig
	indexWriter *report.IndexWriter
	flowWriter  *report.FlowWriter
	script      *ScriptEngine
	log         *zap.Logger
	depth       int // Nesting depth for runFlow reporting
	flowIdx     int // Current flow index (0-based)
	totalFlows  int // Total number of flows
	// Step counters
	stepsPassed  int
	stepsFailed  int
	stepsSkipped int
	// Sub-command tracking for compound steps (runFlow, repeat, retry)
	subCommands []report.Command
}

// Run executes the flow and returns the result.
func (fr *FlowRunner) Run() FlowResult {
	flowStart := time.Now()
	info := fr.driver.GetPlatformInfo()

	fr.log = fr.config.logger().With(zap.String("flow", fr.detail.Name), zap.String("flowId", fr.detail.ID))
	if info != nil && info.Subject != "" {
		fr.log = fr.log.With(zap.String("subject", info.Subject))
	}

	if fr.flow.Config.Timeout > 0 {
		var cancel context.CancelFunc
		fr.ctx, cancel = context.WithTimeout(fr.ctx, time.Duration(fr.flow.Config.Timeout)*time.Millisecond)
		defer cancel()
	}

	fr.flowWriter = report.NewFlowWriter(fr.detail, fr.config.OutputDir, fr.indexWriter)

	fr.script = NewScriptEngine(jsengine.WithLogger(fr.log))
	defer fr.script.Close()

	fr.script.ImportSystemEnv()
	if fr.flow.SourcePath != "" {
		fr.script.SetFlowDir(filepath.Dir(fr.flow.SourcePath))
	}

	// Run-wide variables first so flow env can override them
	fr.script.SetVariables(fr.config.Variables)
	fr.script.SetSession(info)
	if info != nil {
		fr.flowWriter.SetSession(info.SessionID)
	}
	fr.script.SetVariables(fr.flow.Config.Env)

	if fr.flow.Config.CommandTimeout > 0 {
		if setter, ok := fr.driver.(LocateTimeoutSetter); ok {
			prev := setter.SetLocateTimeout(time.Duration(fr.flow.Config.CommandTimeout) * time.Millisecond)
			defer setter.SetLocateTimeout(prev)
		}
	}

	flowName := fr.detail.Name
	flowFile := filepath.Base(fr.flow.SourcePath)
	if fr.config.OnFlowStart != nil {
		fr.config.OnFlowStart(fr.detail.Subject, fr.flowIdx, fr.totalFlows, flowName, flowFile)
	}
	fr.log.Info("flow started", zap.String("file", fr.flow.SourcePath))

	fr.flowWriter.Start()

	flowStatus := report.StatusPassed
	var flowError string

	// onFlowComplete runs even when the flow fails; its failures are ignored.
	defer func() {
		for _, step := range fr.flow.Config.OnFlowComplete {
			fr.executeNestedStep(step)
		}
	}()

	if msg := fr.runSetup(); msg != "" {
		fr.flowWriter.SkipRemainingCommands(0)
		fr.stepsSkipped += countReportedSteps(fr.flow.Steps)
		flowStatus = report.StatusFailed
		flowError = msg
	} else {
		for i, step := range fr.flow.Steps {
			if fr.ctx.Err() != nil {
				fr.flowWriter.SkipRemainingCommands(i)
				flowStatus = report.StatusSkipped
				flowError = "execution cancelled"
				if fr.ctx.Err() == context.DeadlineExceeded {
					flowStatus = report.StatusFailed
					flowError = fmt.Sprintf("flow timed out after %dms", fr.flow.Config.Timeout)
				}
				break
			}

			stepStatus, stepError, stepDuration := fr.executeStep(i, step)

			if fr.config.OnStepComplete != nil {
				fr.config.OnStepComplete(fr.detail.Subject, i, step.Describe(), stepStatus == report.StatusPassed, stepDuration, stepError)
			}

			// Compound steps count their sub-steps instead of themselves.
			if !isCompound(step) {
				switch stepStatus {
				case report.StatusPassed:
					fr.stepsPassed++
				case report.StatusFailed:
					fr.stepsFailed++
				case report.StatusSkipped:
					fr.stepsSkipped++
				}
			}

			if stepStatus == report.StatusFailed {
				if step.IsOptional() {
					fr.log.Warn("optional step failed", zap.Int("step", i), zap.String("error", stepError))
					continue
				}
				fr.flowWriter.SkipRemainingCommands(i + 1)
				fr.stepsSkipped += countReportedSteps(fr.flow.Steps[i+1:])
				flowStatus = report.StatusFailed
				flowError = stepError
				break
			}
		}
	}

	if flowStatus == report.StatusFailed && fr.config.Artifacts != ArtifactNever {
		fr.captureFinalArtifacts()
	}

	fr.flowWriter.End(flowStatus, flowError)
	flowDuration := time.Since(flowStart).Milliseconds()

	if flowStatus == report.StatusFailed {
		fr.log.Error("flow failed", zap.String("error", flowError), zap.Int64("durationMs", flowDuration))
	} else {
		fr.log.Info("flow finished", zap.String("status", string(flowStatus)), zap.Int64("durationMs", flowDuration))
	}

	if fr.config.OnFlowEnd != nil {
		fr.config.OnFlowEnd(fr.detail.Subject, flowName, flowStatus == report.StatusPassed, flowDuration)
	}

	return FlowResult{
		ID:           fr.detail.ID,
		Name:         fr.detail.Name,
		Subject:      fr.detail.Subject,
		Status:       flowStatus,
		Duration:     flowDuration,
		Error:        flowError,
		StepsTotal:   fr.stepsPassed + fr.stepsFailed + fr.stepsSkipped,
		StepsPassed:  fr.stepsPassed,
		StepsFailed:  fr.stepsFailed,
		StepsSkipped: fr.stepsSkipped,
	}
}

// runSetup runs the onFlowStart hooks and then opens the flow's start page.
// It returns a failure message, or "" when the flow may proceed.
func (fr *FlowRunner) runSetup() string {
	for _, step := range fr.flow.Config.OnFlowStart {
		result := fr.executeNestedStep(step)
		if !result.Success && !step.IsOptional() {
			return fmt.Sprintf("onFlowStart failed: %s", resultError(result))
		}
	}

	if fr.flow.Config.URL != "" {
		nav := &flow.NavigateStep{
			BaseStep: flow.BaseStep{StepType: flow.StepNavigate},
			URL:      fr.flow.Config.URL,
		}
		result := fr.executeNestedStep(nav)
		if !result.Success {
			return fmt.Sprintf("open start page: %s", resultError(result))
		}
	}
	return ""
}

// executeStep executes a single step and updates the report.
// Returns status, error message, and duration in milliseconds.
func (fr *FlowRunner) executeStep(idx int, step flow.Step) (report.Status, string, int64) {
	stepStart := time.Now()

	fr.flowWriter.CommandStart(idx)

	captureAlways := fr.config.Artifacts == ArtifactAlways
	captureOnFailure := fr.config.Artifacts == ArtifactOnFailure

	var artifacts report.CommandArtifacts
	if captureAlways {
		artifacts = fr.captureArtifacts(idx, "before")
	}

	var result *core.CommandResult
	switch s := step.(type) {
	case *flow.RepeatStep:
		fr.subCommands = nil
		result = fr.executeRepeat(s)
	case *flow.RetryStep:
		fr.subCommands = nil
		result = fr.executeRetry(s)
	case *flow.RunFlowStep:
		fr.subCommands = nil
		result = fr.executeRunFlow(s)
	default:
		result = fr.dispatch(step)
	}

	stepDuration := time.Since(stepStart).Milliseconds()

	var status report.Status
	var errorInfo *report.Error
	var errorMsg string

	if result.Success {
		status = report.StatusPassed
	} else {
		status = report.StatusFailed
		errorInfo = commandResultToError(result)
		if errorInfo != nil {
			errorMsg = errorInfo.Message
		}
	}

	if captureAlways || (captureOnFailure && !result.Success) {
		after := fr.captureArtifacts(idx, "after")
		artifacts.ScreenshotAfter = after.ScreenshotAfter
		artifacts.PageSource = after.PageSource
	}

	out := report.CommandOutcome{
		Status:    status,
		Message:   result.Message,
		Element:   commandResultToElement(result),
		Data:      result.Data,
		Error:     errorInfo,
		Artifacts: artifacts,
	}
	if isCompound(step) {
		out.SubCommands = fr.subCommands
		fr.subCommands = nil
	}
	fr.flowWriter.CommandEnd(idx, out)

	return status, errorMsg, stepDuration
}

// dispatch runs a non-compound step: script steps in the script engine,
// everything else in the driver after variable expansion.
func (fr *FlowRunner) dispatch(step flow.Step) *core.CommandResult {
	var result *core.CommandResult

	switch s := step.(type) {
	case *flow.DefineVariablesStep:
		result = fr.script.ExecuteDefineVariables(s)
	case *flow.RunScriptStep:
		result = fr.script.ExecuteRunScript(s)
	case *flow.EvalScriptStep:
		result = fr.script.ExecuteEvalScript(s)
	case *flow.AssertTrueStep:
		result = fr.script.ExecuteAssertTrue(s)
	case *flow.UnsupportedStep:
		result = &core.CommandResult{
			Success: false,
			Error:   core.ErrInvalidConfig.WithMessage(s.Describe()),
			Message: fmt.Sprintf("Step '%s' is not supported: %s", s.Type(), s.Reason),
		}
	default:
		result = fr.driver.Execute(fr.ctx, fr.script.ExpandStep(step))
		fr.script.ApplyCapture(result)
	}

	if result == nil {
		result = &core.CommandResult{
			Success: false,
			Error:   fmt.Errorf("no result for step %s", step.Type()),
		}
	}
	return result
}

// executeRepeat handles repeat step execution.
func (fr *FlowRunner) executeRepeat(step *flow.RepeatStep) *core.CommandResult {
	times := fr.script.ParseInt(step.Times, 1)
	hasWhile := !step.While.IsEmpty()
	if hasWhile && step.Times == "" {
		times = 1000 // Cap for while loops
	}
	if times <= 0 {
		times = 1
	}

	iterations := 0
	for i := 0; i < times; i++ {
		if fr.ctx.Err() != nil {
			return &core.CommandResult{
				Success: false,
				Error:   fr.ctx.Err(),
				Message: "Repeat cancelled",
			}
		}

		if hasWhile && !fr.script.CheckCondition(fr.ctx, step.While, fr.driver) {
			break
		}

		for _, nestedStep := range step.Steps {
			result := fr.executeNestedStep(nestedStep)
			if !result.Success && !nestedStep.IsOptional() {
				return result
			}
		}
		iterations++
	}

	return &core.CommandResult{
		Success: true,
		Message: fmt.Sprintf("Repeat completed (%d iterations)", iterations),
	}
}

// executeRetry handles retry step execution.
func (fr *FlowRunner) executeRetry(step *flow.RetryStep) *core.CommandResult {
	maxRetries := fr.script.ParseInt(step.MaxRetries, 3)
	if maxRetries <= 0 {
		maxRetries = 1
	}

	defer fr.script.withEnvVars(step.Env)()

	if step.File != "" && len(step.Steps) == 0 {
		filePath := fr.script.ResolvePath(step.File)
		subFlow, err := flow.ParseFile(filePath)
		if err != nil {
			return &core.CommandResult{
				Success: false,
				Error:   core.ErrInvalidConfig.WithMessage("cannot parse " + filePath).WithCause(err),
				Message: fmt.Sprintf("Failed to parse flow file: %s", filePath),
			}
		}
		return fr.executeSubFlowWithRetry(*subFlow, maxRetries)
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if fr.ctx.Err() != nil {
			return &core.CommandResult{
				Success: false,
				Error:   fr.ctx.Err(),
				Message: "Retry cancelled",
			}
		}

		success := true
		for _, nestedStep := range step.Steps {
			result := fr.executeNestedStep(nestedStep)
			if !result.Success && !nestedStep.IsOptional() {
				lastErr = result.Error
				success = false
				break
			}
		}

		if success {
			return &core.CommandResult{
				Success: true,
				Message: fmt.Sprintf("Retry succeeded on attempt %d", attempt),
			}
		}
		fr.log.Debug("retry attempt failed", zap.Int("attempt", attempt), zap.Error(lastErr))
	}

	return &core.CommandResult{
		Success: false,
		Error:   lastErr,
		Message: fmt.Sprintf("Retry failed after %d attempts", maxRetries),
	}
}

// executeRunFlow handles runFlow step execution.
func (fr *FlowRunner) executeRunFlow(step *flow.RunFlowStep) *core.CommandResult {
	if step.When != nil {
		if !fr.script.CheckCondition(fr.ctx, *step.When, fr.driver) {
			return &core.CommandResult{
				Success: true,
				Message: "Skipped (when condition not met)",
			}
		}
	}

	if fr.config.OnNestedFlowStart != nil && step.File != "" {
		fr.config.OnNestedFlowStart(fr.detail.Subject, fr.depth+1, "Run "+step.File)
	}

	fr.depth++
	defer func() { fr.depth-- }()

	defer fr.script.withEnvVars(step.Env)()

	if len(step.Steps) > 0 {
		for _, nestedStep := range step.Steps {
			result := fr.executeNestedStep(nestedStep)
			if !result.Success && !nestedStep.IsOptional() {
				return result
			}
		}
		return &core.CommandResult{
			Success: true,
			Message: "Inline flow completed",
		}
	}

	if step.File == "" {
		return &core.CommandResult{
			Success: false,
			Error:   core.ErrMissingRequired.WithMessage("runFlow requires file or inline steps"),
			Message: "runFlow requires file or inline steps",
		}
	}

	filePath := fr.script.ResolvePath(step.File)
	subFlow, err := flow.ParseFile(filePath)
	if err != nil {
		return &core.CommandResult{
			Success: false,
			Error:   core.ErrInvalidConfig.WithMessage("cannot parse " + filePath).WithCause(err),
			Message: fmt.Sprintf("Failed to parse flow file: %s", filePath),
		}
	}

	return fr.executeSubFlow(*subFlow)
}

// executeNestedStep executes a step without its own report entry. The step
// is recorded as a sub-command of the enclosing compound step.
func (fr *FlowRunner) executeNestedStep(step flow.Step) *core.CommandResult {
	start := time.Now()
	var result *core.CommandResult

	var nestedSubCommands []report.Command
	compound := isCompound(step)
	if compound {
		parentSubCommands := fr.subCommands
		fr.subCommands = nil
		defer func() {
			nestedSubCommands = fr.subCommands
			fr.subCommands = parentSubCommands
			fr.appendSubCommand(step, start, result, nestedSubCommands)
		}()
	}

	switch s := step.(type) {
	case *flow.RepeatStep:
		result = fr.executeRepeat(s)
	case *flow.RetryStep:
		result = fr.executeRetry(s)
	case *flow.RunFlowStep:
		result = fr.executeRunFlow(s)
	default:
		result = fr.dispatch(step)
	}

	duration := time.Since(start).Milliseconds()

	if !compound {
		if result.Success {
			fr.stepsPassed++
		} else {
			fr.stepsFailed++
		}
		fr.appendSubCommand(step, start, result, nil)
	}

	if fr.config.OnNestedStep != nil && fr.depth > 0 {
		errMsg := ""
		if !result.Success {
			errMsg = resultError(result)
		}
		fr.config.OnNestedStep(fr.detail.Subject, fr.depth, step.Describe(), result.Success, duration, errMsg)
	}

	return result
}

func (fr *FlowRunner) appendSubCommand(step flow.Step, start time.Time, result *core.CommandResult, subs []report.Command) {
	now := time.Now()
	duration := now.Sub(start).Milliseconds()

	status := report.StatusPassed
	if result == nil || !result.Success {
		status = report.StatusFailed
	}

	cmd := report.Command{
		ID:          fmt.Sprintf("sub-%d", len(fr.subCommands)),
		Index:       len(fr.subCommands),
		Type:        string(step.Type()),
		Label:       step.Label(),
		YAML:        step.Describe(),
		Status:      status,
		Optional:    step.IsOptional(),
		StartTime:   &start,
		EndTime:     &now,
		Duration:    &duration,
		SubCommands: subs,
	}
	if result != nil {
		cmd.Message = result.Message
		cmd.Element = commandResultToElement(result)
		cmd.Error = commandResultToError(result)
	}

	fr.subCommands = append(fr.subCommands, cmd)
}

// executeSubFlow executes a sub-flow without separate report tracking.
func (fr *FlowRunner) executeSubFlow(subFlow flow.Flow) *core.CommandResult {
	prevDir := fr.script.flowDir
	if subFlow.SourcePath != "" {
		fr.script.SetFlowDir(filepath.Dir(subFlow.SourcePath))
	}
	defer func() { fr.script.flowDir = prevDir }()

	defer fr.script.withEnvVars(subFlow.Config.Env)()

	for _, step := range subFlow.Steps {
		if fr.ctx.Err() != nil {
			return &core.CommandResult{
				Success: false,
				Error:   fr.ctx.Err(),
				Message: "Sub-flow cancelled",
			}
		}

		result := fr.executeNestedStep(step)
		if !result.Success && !step.IsOptional() {
			return result
		}
	}

	return &core.CommandResult{
		Success: true,
		Message: fmt.Sprintf("Sub-flow '%s' completed", report.FlowName(subFlow)),
	}
}

// executeSubFlowWithRetry executes a sub-flow with retry logic.
func (fr *FlowRunner) executeSubFlowWithRetry(subFlow flow.Flow, maxRetries int) *core.CommandResult {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if fr.ctx.Err() != nil {
			return &core.CommandResult{
				Success: false,
				Error:   fr.ctx.Err(),
				Message: "Retry cancelled",
			}
		}

		result := fr.executeSubFlow(subFlow)
		if result.Success {
			return &core.CommandResult{
				Success: true,
				Message: fmt.Sprintf("Retry succeeded on attempt %d", attempt),
			}
		}
		lastErr = result.Error
	}

	return &core.CommandResult{
		Success: false,
		Error:   lastErr,
		Message: fmt.Sprintf("Retry failed after %d attempts", maxRetries),
	}
}

// captureArtifacts saves a screenshot, and after the step also the page
// source.
func (fr *FlowRunner) captureArtifacts(cmdIdx int, timing string) report.CommandArtifacts {
	var artifacts report.CommandArtifacts

	if data, err := fr.driver.Screenshot(); err == nil && len(data) > 0 {
		path, saveErr := fr.flowWriter.SaveScreenshot(cmdIdx, timing, data)
		if saveErr == nil {
			if timing == "before" {
				artifacts.ScreenshotBefore = path
			} else {
				artifacts.ScreenshotAfter = path
			}
		}
	} else if err != nil {
		fr.log.Debug("screenshot failed", zap.Error(err))
	}

	if timing == "after" {
		if data, err := fr.driver.PageSource(); err == nil && len(data) > 0 {
			if path, saveErr := fr.flowWriter.SavePageSource(cmdIdx, data); saveErr == nil {
				artifacts.PageSource = path
			}
		}
	}

	return artifacts
}

// captureFinalArtifacts records how the page looked when the flow failed.
func (fr *FlowRunner) captureFinalArtifacts() {
	var artifacts report.FlowArtifacts
	if data, err := fr.driver.Screenshot(); err == nil && len(data) > 0 {
		if path, err := fr.flowWriter.SaveFinal("final.png", data); err == nil {
			artifacts.FinalScreenshot = path
		}
	}
	if data, err := fr.driver.PageSource(); err == nil && len(data) > 0 {
		if path, err := fr.flowWriter.SaveFinal("final.html", data); err == nil {
			artifacts.FinalPageSource = path
		}
	}
	fr.flowWriter.SetFlowArtifacts(artifacts)
}

func isCompound(step flow.Step) bool {
	switch step.(type) {
	case *flow.RepeatStep, *flow.RetryStep, *flow.RunFlowStep:
		return true
	}
	return false
}

// countReportedSteps counts steps that contribute to step totals.
func countReportedSteps(steps []flow.Step) int {
	n := 0
	for _, s := range steps {
		if !isCompound(s) {
			n++
		}
	}
	return n
}

func resultError(r *core.CommandResult) string {
	switch {
	case r.Message != "":
		return r.Message
	case r.Error != nil:
		return r.Error.Error()
	}
	return "unknown error"
}
