package web

import (
	"context"
	"fmt"
	"strings"

	"github.com/pookie-qa/pookie-runner/pkg/core"
	"github.com/pookie-qa/pookie-runner/pkg/flow"
	"github.com/pookie-qa/pookie-runner/pkg/interact"
)

func (d *Driver) waitForReady(ctx context.Context, step *flow.WaitForReadyStep) *core.CommandResult {
	if err := d.session.WaitForPostback(ctx, stepTimeout(step, d.session.Timeouts.Ready)); err != nil {
		return errorResult(err, "")
	}
	return successResult("Page ready", nil)
}

func (d *Driver) waitForModalClose(ctx context.Context, step *flow.WaitForModalCloseStep) *core.CommandResult {
	if err := d.session.WaitForModalsClosed(ctx, step.Selector.CSS, stepTimeout(step, d.session.Timeouts.Modal)); err != nil {
		return errorResult(err, "Modal did not close")
	}
	return successResult("Modal closed", nil)
}

func (d *Driver) sleep(ctx context.Context, step *flow.SleepStep) *core.CommandResult {
	dur, err := parseDuration(step.Duration)
	if err != nil {
		return errorResult(err, fmt.Sprintf("Invalid sleep duration %q", step.Duration))
	}
	if err := d.session.Settle(ctx, dur); err != nil {
		return errorResult(err, "")
	}
	return successResult("Slept "+dur.String(), nil)
}

func (d *Driver) captureQueryParam(ctx context.Context, step *flow.CaptureQueryParamStep) *core.CommandResult {
	if step.Param == "" || step.Variable == "" {
		return errorResult(core.ErrMissingRequired.WithMessage("param and variable are required"), "")
	}
	el, err := d.locate(ctx, step.Selector, stepTimeout(step, d.session.Timeouts.Locate))
	if err != nil {
		return errorResult(err, "")
	}
	attr := step.Attribute
	if attr == "" {
		attr = "href"
	}
	raw, err := el.Attribute(attr)
	if err != nil {
		return errorResult(err, "")
	}
	value, ok := interact.ExtractQueryParameter(raw, step.Param)
	if !ok || strings.TrimSpace(value) == "" {
		return errorResult(core.ErrNotFound.WithMessage(fmt.Sprintf("query parameter '%s' not found in %q", step.Param, raw)), "")
	}
	result := successResult(fmt.Sprintf("Captured %s=%s", step.Variable, value), interact.Describe(el))
	result.Data = core.Capture{Variable: step.Variable, Value: value}
	return result
}
