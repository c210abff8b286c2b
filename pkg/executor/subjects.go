package executor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pookie-qa/pookie-runner/pkg/core"
	"github.com/pookie-qa/pookie-runner/pkg/flow"
	"github.com/pookie-qa/pookie-runner/pkg/report"
)

// SessionFactory opens a browser session bound to subject. The returned
// release function closes it.
type SessionFactory func(ctx context.Context, subject string) (core.Driver, func() error, error)

// SubjectRunner runs flows against several PC1 ids. Every subject gets its
// own browser session; flows of one subject run in order on that session,
// and subjects run concurrently up to RunnerConfig.Parallelism.
//
// Flows marked perSubject run once per subject. Other flows run once, on
// the first subject's session.
type SubjectRunner struct {
	subjects []string
	factory  SessionFactory
	config   RunnerConfig
}

// NewSubjectRunner creates a SubjectRunner. With no subjects, flows run once
// on a session without a subject.
func NewSubjectRunner(subjects []string, factory SessionFactory, cfg RunnerConfig) *SubjectRunner {
	if len(subjects) == 0 {
		subjects = []string{""}
	}
	return &SubjectRunner{
		subjects: subjects,
		factory:  factory,
		config:   cfg,
	}
}

// Plan expands flows into the targets the run will execute, grouped by
// subject in subject order.
func (sr *SubjectRunner) Plan(flows []flow.Flow) ([]report.Target, [][]int) {
	var targets []report.Target
	bySubject := make([][]int, len(sr.subjects))

	for j, subject := range sr.subjects {
		for _, f := range flows {
			if j > 0 && !f.Config.PerSubject {
				continue
			}
			bySubject[j] = append(bySubject[j], len(targets))
			targets = append(targets, report.Target{Flow: f, Subject: subject})
		}
	}
	return targets, bySubject
}

// Run executes the planned targets and writes one shared report.
func (sr *SubjectRunner) Run(ctx context.Context, flows []flow.Flow) (*RunResult, error) {
	if sr.factory == nil {
		return nil, fmt.Errorf("no session factory")
	}

	targets, bySubject := sr.Plan(flows)

	index, flowDetails, err := report.BuildSkeleton(targets, sr.config.builderConfig())
	if err != nil {
		return nil, err
	}
	if err := report.WriteSkeleton(sr.config.OutputDir, index, flowDetails); err != nil {
		return nil, err
	}

	indexWriter := report.NewIndexWriter(sr.config.OutputDir, index)
	defer indexWriter.Close()

	indexWriter.Start()
	start := time.Now()
	log := sr.config.logger()

	results := make([]FlowResult, len(targets))
	var stopped atomic.Bool

	var g errgroup.Group
	if sr.config.Parallelism > 0 {
		g.SetLimit(sr.config.Parallelism)
	}

	for j, subject := range sr.subjects {
		idxs := bySubject[j]
		if len(idxs) == 0 {
			continue
		}

		g.Go(func() error {
			subLog := log.With(zap.String("subject", subject))

			if stopped.Load() || ctx.Err() != nil {
				for _, i := range idxs {
					results[i] = skippedResult(&flowDetails[i], "run stopped")
					indexWriter.MarkSkipped(flowDetails[i].ID, "run stopped")
				}
				return nil
			}

			driver, release, err := sr.factory(ctx, subject)
			if err != nil {
				subLog.Error("browser session failed", zap.Error(err))
				msg := fmt.Sprintf("browser session for %q failed: %v", subject, err)
				for _, i := range idxs {
					results[i] = sessionFailedResult(&flowDetails[i], msg)
					failFlow(indexWriter, &flowDetails[i], msg)
				}
				if sr.config.StopOnFail {
					stopped.Store(true)
				}
				return nil
			}
			defer func() {
				if release == nil {
					return
				}
				if err := release(); err != nil {
					subLog.Warn("closing browser session", zap.Error(err))
				}
			}()

			runner := &Runner{config: sr.config, driver: driver}
			for _, i := range idxs {
				if stopped.Load() || ctx.Err() != nil {
					reason := "run cancelled"
					if stopped.Load() {
						reason = "run stopped after failure"
					}
					results[i] = skippedResult(&flowDetails[i], reason)
					indexWriter.MarkSkipped(flowDetails[i].ID, reason)
					continue
				}

				results[i] = runner.executeFlow(ctx, targets[i].Flow, &flowDetails[i], indexWriter, i, len(targets))
				if sr.config.StopOnFail && results[i].Status == report.StatusFailed {
					stopped.Store(true)
				}
			}
			return nil
		})
	}

	// Subjects never return errors; failures live in the results.
	_ = g.Wait()

	indexWriter.End()

	return buildRunResult(index.RunID, results, time.Since(start).Milliseconds()), nil
}

func sessionFailedResult(detail *report.FlowDetail, msg string) FlowResult {
	return FlowResult{
		ID:           detail.ID,
		Name:         detail.Name,
		Subject:      detail.Subject,
		Status:       report.StatusFailed,
		Error:        msg,
		StepsTotal:   len(detail.Commands),
		StepsSkipped: len(detail.Commands),
	}
}

// failFlow records a flow that could not start because its session failed.
func failFlow(w *report.IndexWriter, detail *report.FlowDetail, msg string) {
	now := time.Now()
	var zero int64
	w.UpdateFlow(detail.ID, &report.FlowUpdate{
		Status:    report.StatusFailed,
		StartTime: &now,
		EndTime:   &now,
		Duration:  &zero,
		Commands: report.CommandSummary{
			Total:   len(detail.Commands),
			Skipped: len(detail.Commands),
		},
		Error: &msg,
	})
}
