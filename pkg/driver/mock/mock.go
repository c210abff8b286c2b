// Package mock provides browser-free stand-ins: an in-memory DOM that
// implements browser.Page, and a step-level core.Driver for runner tests.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pookie-qa/pookie-runner/pkg/core"
	"github.com/pookie-qa/pookie-runner/pkg/flow"
)

// Driver is a mock implementation of core.Driver for testing.
type Driver struct {
	// Configuration
	Config Config

	mu        sync.Mutex
	stepCount int
	executed  []string
}

// Config configures mock driver behavior.
type Config struct {
	// FailOnStep makes step N fail (1-indexed). 0 = never fail.
	FailOnStep int
	// FailOnType makes every step of this type fail.
	FailOnType flow.StepType
	// StepDelay adds artificial delay per step
	StepDelay time.Duration
	// Session info to report
	Backend   string
	SessionID string
	Subject   string
	BaseURL   string
}

// New creates a new mock driver.
func New(cfg Config) *Driver {
	if cfg.Backend == "" {
		cfg.Backend = "mock"
	}
	if cfg.SessionID == "" {
		cfg.SessionID = "mock-session"
	}
	return &Driver{Config: cfg}
}

// Execute simulates executing a step.
func (d *Driver) Execute(ctx context.Context, step flow.Step) *core.CommandResult {
	d.mu.Lock()
	d.stepCount++
	n := d.stepCount
	d.executed = append(d.executed, step.Describe())
	d.mu.Unlock()

	start := time.Now()

	if d.Config.StepDelay > 0 {
		select {
		case <-ctx.Done():
			return &core.CommandResult{Success: false, Error: ctx.Err(), Duration: time.Since(start)}
		case <-time.After(d.Config.StepDelay):
		}
	}

	if (d.Config.FailOnStep > 0 && n == d.Config.FailOnStep) ||
		(d.Config.FailOnType != "" && step.Type() == d.Config.FailOnType) {
		return &core.CommandResult{
			Success:  false,
			Duration: time.Since(start),
			Error:    fmt.Errorf("mock failure on step %d", n),
			Message:  fmt.Sprintf("Simulated failure on step %d (%s)", n, step.Type()),
		}
	}

	result := &core.CommandResult{
		Success:  true,
		Duration: time.Since(start),
		Message:  fmt.Sprintf("Mock executed: %s", step.Type()),
	}
	if needsElement(step) {
		result.Element = &core.ElementInfo{
			Tag:     "input",
			ID:      "mock-element",
			Visible: true,
		}
	}
	return result
}

// Executed returns the descriptions of every executed step, in order.
func (d *Driver) Executed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.executed...)
}

// Screenshot returns a PNG signature.
func (d *Driver) Screenshot() ([]byte, error) {
	return []byte("\x89PNG\r\n\x1a\n"), nil
}

// PageSource returns a minimal document.
func (d *Driver) PageSource() ([]byte, error) {
	return []byte("<html><body></body></html>"), nil
}

// GetPlatformInfo returns mock session info.
func (d *Driver) GetPlatformInfo() *core.PlatformInfo {
	return &core.PlatformInfo{
		Browser:   "mock",
		Backend:   d.Config.Backend,
		SessionID: d.Config.SessionID,
		BaseURL:   d.Config.BaseURL,
		Headless:  true,
		Subject:   d.Config.Subject,
	}
}

// needsElement returns true if the step type typically returns element info.
func needsElement(step flow.Step) bool {
	switch step.Type() {
	case flow.StepClick, flow.StepSetInput, flow.StepSelectOption,
		flow.StepAssertVisible, flow.StepAssertText:
		return true
	}
	return false
}
