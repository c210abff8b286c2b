package web

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pookie-qa/pookie-runner/pkg/browser"
	"github.com/pookie-qa/pookie-runner/pkg/core"
	"github.com/pookie-qa/pookie-runner/pkg/flow"
	"github.com/pookie-qa/pookie-runner/pkg/interact"
	"github.com/pookie-qa/pookie-runner/pkg/wait"
	"github.com/pookie-qa/pookie-runner/pkg/webforms"
)

// locate resolves sel, modal first unless the selector is page-only.
func (d *Driver) locate(ctx context.Context, sel flow.Selector, timeout time.Duration) (browser.Element, error) {
	if sel.IsEmpty() {
		return nil, core.ErrMissingRequired.WithMessage("selector is required")
	}
	if sel.PageOnly {
		return d.session.LocateOnPage(ctx, sel.CSS, sel.Describe(), timeout)
	}
	return d.session.Locate(ctx, sel.CSS, sel.Describe(), timeout)
}

// withRelocate runs fn against a freshly located element, and once more
// against a re-located one when the first handle went stale mid-action.
func (d *Driver) withRelocate(ctx context.Context, sel flow.Selector, timeout time.Duration,
	fn func(el browser.Element) error) (browser.Element, error) {
	el, err := d.locate(ctx, sel, timeout)
	if err != nil {
		return nil, err
	}
	err = fn(el)
	if err == nil || !errors.Is(err, core.ErrStaleReference) {
		return el, err
	}
	d.log.Debug("re-locating after stale reference", zap.String("element", sel.Describe()))
	if el, err = d.locate(ctx, sel, timeout); err != nil {
		return nil, err
	}
	return el, fn(el)
}

func (d *Driver) navigate(ctx context.Context, step *flow.NavigateStep) *core.CommandResult {
	target, err := d.resolveURL(step.URL)
	if err != nil {
		return errorResult(err, "")
	}
	if err := d.page.Navigate(target); err != nil {
		return errorResult(err, fmt.Sprintf("Failed to navigate to %s", target))
	}
	if err := d.session.WaitForReady(ctx, stepTimeout(step, d.session.Timeouts.Ready)); err != nil {
		return errorResult(err, fmt.Sprintf("Page %s did not finish loading", target))
	}
	return successResult("Navigated to "+target, nil)
}

func (d *Driver) click(ctx context.Context, step *flow.ClickStep) *core.CommandResult {
	timeout := stepTimeout(step, d.session.Timeouts.Locate)
	desc := step.Selector.Describe()
	el, err := d.withRelocate(ctx, step.Selector, timeout, func(el browser.Element) error {
		return d.session.ClickElement(ctx, el, desc)
	})
	if err != nil {
		return errorResult(err, fmt.Sprintf("Failed to click %s", step.Selector.DescribeQuoted()))
	}
	// Describe before waiting: a postback may detach the element.
	info := interact.Describe(el)
	if boolOr(step.WaitReady, true) {
		if err := d.session.WaitForPostback(ctx, d.session.Timeouts.UpdatePanel); err != nil {
			return errorResult(err, fmt.Sprintf("Page did not settle after clicking %s", step.Selector.DescribeQuoted()))
		}
	}
	return successResult("Clicked "+desc, info)
}

func (d *Driver) setInput(ctx context.Context, step *flow.SetInputStep) *core.CommandResult {
	field := step.FieldName()
	var strategy interact.Strategy
	el, err := d.withRelocate(ctx, step.Selector, stepTimeout(step, d.session.Timeouts.Locate), func(el browser.Element) error {
		var err error
		strategy, err = d.session.SetInputValue(ctx, el, step.Value, field, boolOr(step.Blur, true))
		return err
	})
	if err != nil {
		return errorResult(err, "")
	}
	result := successResult(fmt.Sprintf("Set %s to %q (%s)", field, step.Value, strategy), interact.Describe(el))
	result.Data = strategy.String()
	return result
}

func (d *Driver) selectOption(ctx context.Context, step *flow.SelectOptionStep) *core.CommandResult {
	desc := step.Selector.Describe()
	timeout := stepTimeout(step, d.session.Timeouts.Dropdown)

	if step.Option == "" && step.Value == "" && len(step.Candidates) > 0 {
		var chosen string
		el, err := d.withRelocate(ctx, step.Selector, timeout, func(el browser.Element) error {
			var err error
			chosen, err = d.session.SelectCandidateOn(ctx, el, desc, step.Candidates...)
			return err
		})
		if err != nil {
			return errorResult(err, "")
		}
		result := successResult(fmt.Sprintf("Selected %q in %s", chosen, desc), interact.Describe(el))
		result.Data = chosen
		return result
	}

	var outcome interact.SelectOutcome
	el, err := d.withRelocate(ctx, step.Selector, timeout, func(el browser.Element) error {
		var err error
		outcome, err = d.session.SelectOption(ctx, el, desc, step.Option, step.Value)
		return err
	})
	if err != nil {
		return errorResult(err, "")
	}
	msg := fmt.Sprintf("Selected %q in %s", step.Option, desc)
	if outcome == interact.Fallback {
		msg = fmt.Sprintf("Selected value %q in %s (text %q not present)", step.Value, desc, step.Option)
	}
	result := successResult(msg, interact.Describe(el))
	result.Data = outcome.String()
	return result
}

func (d *Driver) assertVisible(ctx context.Context, step *flow.AssertVisibleStep) *core.CommandResult {
	el, err := d.locate(ctx, step.Selector, stepTimeout(step, d.session.Timeouts.Locate))
	if err != nil {
		return errorResult(err, fmt.Sprintf("Element %s is not visible", step.Selector.DescribeQuoted()))
	}
	return successResult("Visible: "+step.Selector.Describe(), interact.Describe(el))
}

func (d *Driver) assertNotVisible(ctx context.Context, step *flow.AssertNotVisibleStep) *core.CommandResult {
	desc := step.Selector.Describe()
	err := wait.Until(ctx, wait.Options{
		Description: desc + " to be hidden",
		Timeout:     stepTimeout(step, d.session.Timeouts.Locate),
		Interval:    d.session.Interval,
	}, func(context.Context) (bool, error) {
		els, err := d.page.FindElements(step.Selector.CSS)
		if err != nil {
			return false, err
		}
		return browser.FirstDisplayed(els) == nil, nil
	})
	if err != nil {
		return errorResult(err, fmt.Sprintf("Element %s is still visible", step.Selector.DescribeQuoted()))
	}
	return successResult("Not visible: "+desc, nil)
}

func (d *Driver) assertText(ctx context.Context, step *flow.AssertTextStep) *core.CommandResult {
	el, err := d.locate(ctx, step.Selector, stepTimeout(step, d.session.Timeouts.Locate))
	if err != nil {
		return errorResult(err, "")
	}
	info := interact.Describe(el)
	observed := strings.TrimSpace(info.Text)
	if observed == "" {
		observed = strings.TrimSpace(info.Value)
	}

	switch {
	case step.Equals != "" && observed != strings.TrimSpace(step.Equals):
		return errorResult(core.ErrTextMismatch.WithDetails(map[string]interface{}{"observed": observed}),
			fmt.Sprintf("Expected %s to equal %q but was %q", step.Selector.DescribeQuoted(), step.Equals, observed))
	case step.Contains != "" && !strings.Contains(strings.ToLower(observed), strings.ToLower(step.Contains)):
		return errorResult(core.ErrTextMismatch.WithDetails(map[string]interface{}{"observed": observed}),
			fmt.Sprintf("Expected %s to contain %q but was %q", step.Selector.DescribeQuoted(), step.Contains, observed))
	}

	result := successResult(fmt.Sprintf("Text of %s is %q", step.Selector.Describe(), observed), info)
	if step.Variable != "" {
		result.Data = core.Capture{Variable: step.Variable, Value: observed}
	}
	return result
}

func (d *Driver) assertValidation(ctx context.Context, step *flow.AssertValidationStep) *core.CommandResult {
	timeout := stepTimeout(step, d.session.Timeouts.Toast)

	if step.Absent {
		first, err := d.session.ValidationSummary()
		if err != nil {
			return errorResult(err, "")
		}
		if first != "" {
			return errorResult(core.ErrConditionNotMet.WithMessage("unexpected validation message"),
				fmt.Sprintf("Unexpected validation message: %q", first))
		}
		return successResult("No validation messages", nil)
	}

	summary, err := wait.Poll(ctx, wait.Options{
		Description: "validation summary containing " + strings.Join(step.Contains, ", "),
		Timeout:     timeout,
		Interval:    d.session.Interval,
	}, func(context.Context) (string, bool, error) {
		msgs, err := d.session.ValidationMessages()
		if err != nil {
			return "", false, err
		}
		all := strings.ToLower(strings.Join(msgs, "\n"))
		if all == "" {
			return "", false, nil
		}
		for _, want := range step.Contains {
			if !strings.Contains(all, strings.ToLower(want)) {
				return "", false, nil
			}
		}
		return strings.Join(msgs, "\n"), true, nil
	})
	if err != nil {
		return errorResult(err, "")
	}
	result := successResult("Validation: "+summary, nil)
	result.Data = summary
	return result
}

func (d *Driver) assertToast(ctx context.Context, step *flow.AssertToastStep) *core.CommandResult {
	timeout := stepTimeout(step, d.session.Timeouts.Toast)
	var (
		toast interact.Toast
		err   error
	)
	if step.Any {
		toast, err = d.session.WaitForToast(ctx, webforms.Toast, timeout)
	} else {
		toast, err = d.session.WaitForSuccessToast(ctx, timeout)
	}
	if err != nil {
		// An error toast in place of the success one is the usual cause.
		if shown, terr := d.session.GetToastMessage(ctx, 0); terr == nil && shown != "" {
			return errorResult(err, fmt.Sprintf("No success toast appeared; showing %q", shown))
		}
		return errorResult(err, "No toast appeared")
	}

	if step.Heading != "" && !strings.Contains(strings.ToLower(toast.Heading), strings.ToLower(step.Heading)) {
		return errorResult(core.ErrTextMismatch, fmt.Sprintf("Expected toast heading %q but was %q", step.Heading, toast.Heading))
	}
	if step.Contains != "" && !strings.Contains(strings.ToLower(toast.Text), strings.ToLower(step.Contains)) {
		return errorResult(core.ErrTextMismatch, fmt.Sprintf("Expected toast containing %q but was %q", step.Contains, toast.Text))
	}
	result := successResult("Toast: "+toast.Text, nil)
	result.Data = toast
	return result
}
