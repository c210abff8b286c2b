// Package executor orchestrates flow execution, connecting drivers to reports.
package executor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pookie-qa/pookie-runner/pkg/core"
	"github.com/pookie-qa/pookie-runner/pkg/flow"
	"github.com/pookie-qa/pookie-runner/pkg/logger"
	"github.com/pookie-qa/pookie-runner/pkg/report"
)

// ArtifactMode determines when to capture screenshots and page sources.
type ArtifactMode int

const (
	// ArtifactOnFailure captures artifacts only when a step fails.
	ArtifactOnFailure ArtifactMode = iota
	// ArtifactAlways captures artifacts before and after every step.
	ArtifactAlways
	// ArtifactNever disables artifact capture.
	ArtifactNever
)

// RunnerConfig configures the test runner.
type RunnerConfig struct {
	OutputDir   string       // Report output directory
	Parallelism int          // Max subjects running at once (SubjectRunner); 0 = one per subject
	StopOnFail  bool         // Stop scheduling flows after the first failure
	Artifacts   ArtifactMode // When to capture artifacts

	// Variables are visible to every flow: config values and --env pairs.
	Variables map[string]string

	// Browser/App info for reports
	Browser report.Browser
	App     report.App
	CI      *report.CI

	// Runner metadata
	RunnerVersion string
	DriverName    string

	// Logger defaults to logger.L().
	Logger *zap.Logger

	// Live progress callbacks. With several subjects they are called from
	// several goroutines; subject is the PC1 id the flow runs for, or "".
	OnFlowStart       func(subject string, flowIdx, totalFlows int, name, file string)
	OnStepComplete    func(subject string, idx int, desc string, passed bool, durationMs int64, err string)
	OnNestedStep      func(subject string, depth int, desc string, passed bool, durationMs int64, err string)
	OnNestedFlowStart func(subject string, depth int, desc string)
	OnFlowEnd         func(subject, name string, passed bool, durationMs int64)
}

func (c RunnerConfig) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logger.L()
}

func (c RunnerConfig) builderConfig() report.BuilderConfig {
	return report.BuilderConfig{
		OutputDir:     c.OutputDir,
		Browser:       c.Browser,
		App:           c.App,
		CI:            c.CI,
		RunnerVersion: c.RunnerVersion,
		DriverName:    c.DriverName,
	}
}

// RunResult contains the outcome of a test run.
type RunResult struct {
	Status       report.Status
	RunID        string
	TotalFlows   int
	PassedFlows  int
	FailedFlows  int
	SkippedFlows int
	Duration     int64 // Wall clock duration in milliseconds
	FlowResults  []FlowResult
}

// FlowResult contains the outcome of a single flow execution.
type FlowResult struct {
	ID           string
	Name         string
	Subject      string
	Status       report.Status
	Duration     int64
	Error        string
	StepsTotal   int
	StepsPassed  int
	StepsFailed  int
	StepsSkipped int
}

// Runner executes flows one after another on a single driver.
type Runner struct {
	config RunnerConfig
	driver core.Driver
}

// New creates a new Runner.
func New(driver core.Driver, cfg RunnerConfig) *Runner {
	return &Runner{
		config: cfg,
		driver: driver,
	}
}

// Run executes all flows and generates reports.
func (r *Runner) Run(ctx context.Context, flows []flow.Flow) (*RunResult, error) {
	subject := ""
	if info := r.driver.GetPlatformInfo(); info != nil {
		subject = info.Subject
	}
	targets := make([]report.Target, len(flows))
	for i, f := range flows {
		targets[i] = report.Target{Flow: f, Subject: subject}
	}

	index, flowDetails, err := report.BuildSkeleton(targets, r.config.builderConfig())
	if err != nil {
		return nil, err
	}
	if err := report.WriteSkeleton(r.config.OutputDir, index, flowDetails); err != nil {
		return nil, err
	}

	indexWriter := report.NewIndexWriter(r.config.OutputDir, index)
	defer indexWriter.Close()

	indexWriter.Start()
	start := time.Now()

	results := make([]FlowResult, len(flows))
	stopped := false
	for i := range flows {
		if stopped || ctx.Err() != nil {
			reason := "run cancelled"
			if stopped {
				reason = "run stopped after failure"
			}
			results[i] = skippedResult(&flowDetails[i], reason)
			indexWriter.MarkSkipped(flowDetails[i].ID, reason)
			continue
		}
		results[i] = r.executeFlow(ctx, flows[i], &flowDetails[i], indexWriter, i, len(flows))
		if r.config.StopOnFail && results[i].Status == report.StatusFailed {
			stopped = true
		}
	}

	indexWriter.End()

	return buildRunResult(index.RunID, results, time.Since(start).Milliseconds()), nil
}

// executeFlow runs a single flow.
func (r *Runner) executeFlow(ctx context.Context, f flow.Flow, detail *report.FlowDetail, indexWriter *report.IndexWriter, flowIdx, totalFlows int) FlowResult {
	fr := &FlowRunner{
		ctx:         ctx,
		flow:        f,
		detail:      detail,
		driver:      r.driver,
		config:      r.config,
		indexWriter: indexWriter,
		flowIdx:     flowIdx,
		totalFlows:  totalFlows,
	}
	return fr.Run()
}

func skippedResult(detail *report.FlowDetail, reason string) FlowResult {
	return FlowResult{
		ID:           detail.ID,
		Name:         detail.Name,
		Subject:      detail.Subject,
		Status:       report.StatusSkipped,
		Error:        reason,
		StepsTotal:   len(detail.Commands),
		StepsSkipped: len(detail.Commands),
	}
}

// buildRunResult aggregates flow results into a run result.
func buildRunResult(runID string, flowResults []FlowResult, wallClock int64) *RunResult {
	result := &RunResult{
		RunID:       runID,
		TotalFlows:  len(flowResults),
		FlowResults: flowResults,
		Duration:    wallClock,
	}

	for _, fr := range flowResults {
		switch fr.Status {
		case report.StatusPassed:
			result.PassedFlows++
		case report.StatusFailed:
			result.FailedFlows++
		case report.StatusSkipped:
			result.SkippedFlows++
		}
	}

	// Skipped flows do not fail a run on their own
	result.Status = report.StatusPassed
	if result.FailedFlows > 0 {
		result.Status = report.StatusFailed
	}

	return result
}
