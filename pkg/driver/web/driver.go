// Package web implements core.Driver for the case-management web app on top
// of the interaction layer. One Driver owns one browser session.
package web

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pookie-qa/pookie-runner/pkg/browser"
	"github.com/pookie-qa/pookie-runner/pkg/core"
	"github.com/pookie-qa/pookie-runner/pkg/flow"
	"github.com/pookie-qa/pookie-runner/pkg/interact"
)

// Config carries the app and session settings a Driver needs.
type Config struct {
	BaseURL  string
	User     string
	Password string
	Program  string
	Role     string
	// Subject is the PC1 id searchCase uses when the step names none.
	Subject string

	Browser   string
	Backend   string
	SessionID string
	Headless  bool
}

// Driver implements core.Driver over a browser.Page.
type Driver struct {
	page    browser.Page
	session *interact.Session
	cfg     Config
	log     *zap.Logger
	// rows holds the rows waitForRow saw, keyed by grid and query, for the
	// deletion checks that follow.
	rows map[string]interact.RowSnapshot
}

var _ core.Driver = (*Driver)(nil)

// New creates a Driver. Session options tune timeouts, logging and sleeping.
func New(page browser.Page, cfg Config, opts ...interact.Option) *Driver {
	s := interact.NewSession(page, opts...)
	return &Driver{
		page:    page,
		session: s,
		cfg:     cfg,
		log:     s.Logger().With(zap.String("subject", cfg.Subject)),
		rows:    map[string]interact.RowSnapshot{},
	}
}

// Session exposes the interaction session for helpers outside steps.
func (d *Driver) Session() *interact.Session { return d.session }

// SetLocateTimeout changes how long element lookups wait and returns the
// previous budget so callers can restore it.
func (d *Driver) SetLocateTimeout(t time.Duration) time.Duration {
	prev := d.session.Timeouts.Locate
	d.session.Timeouts.Locate = t
	return prev
}

// Close releases the browser session.
func (d *Driver) Close() error {
	return d.page.Close()
}

// Execute implements core.Driver.
func (d *Driver) Execute(ctx context.Context, step flow.Step) *core.CommandResult {
	start := time.Now()
	result := d.executeStep(ctx, step)
	result.Duration = time.Since(start)
	if !result.Success {
		d.log.Debug("step failed", zap.String("step", step.Describe()), zap.Error(result.Error))
	}
	return result
}

func (d *Driver) executeStep(ctx context.Context, step flow.Step) *core.CommandResult {
	switch s := step.(type) {
	// Interaction
	case *flow.NavigateStep:
		return d.navigate(ctx, s)
	case *flow.ClickStep:
		return d.click(ctx, s)
	case *flow.SetInputStep:
		return d.setInput(ctx, s)
	case *flow.SelectOptionStep:
		return d.selectOption(ctx, s)

	// Assertions
	case *flow.AssertVisibleStep:
		return d.assertVisible(ctx, s)
	case *flow.AssertNotVisibleStep:
		return d.assertNotVisible(ctx, s)
	case *flow.AssertTextStep:
		return d.assertText(ctx, s)
	case *flow.AssertValidationStep:
		return d.assertValidation(ctx, s)
	case *flow.AssertToastStep:
		return d.assertToast(ctx, s)

	// Waits
	case *flow.WaitForReadyStep:
		return d.waitForReady(ctx, s)
	case *flow.WaitForModalCloseStep:
		return d.waitForModalClose(ctx, s)
	case *flow.WaitForRowStep:
		return d.waitForRow(ctx, s)
	case *flow.WaitForRowRemovedStep:
		return d.waitForRowRemoved(ctx, s)
	case *flow.VerifyDeletedStep:
		return d.verifyDeleted(ctx, s)
	case *flow.DeleteRowStep:
		return d.deleteRow(ctx, s)
	case *flow.SleepStep:
		return d.sleep(ctx, s)

	// Data capture
	case *flow.CaptureQueryParamStep:
		return d.captureQueryParam(ctx, s)

	// App navigation
	case *flow.LoginStep:
		return d.login(ctx, s)
	case *flow.SelectRoleStep:
		return d.selectRole(ctx, s)
	case *flow.SearchCaseStep:
		return d.searchCase(ctx, s)
	case *flow.OpenFormsTabStep:
		return d.openFormsTab(ctx, s)
	case *flow.OpenFormStep:
		return d.openForm(ctx, s)

	case *flow.TakeScreenshotStep:
		return d.takeScreenshot(s)

	default:
		return &core.CommandResult{
			Success: false,
			Error:   fmt.Errorf("unknown step type: %T", step),
			Message: fmt.Sprintf("Step type '%s' is not supported by the web driver", step.Type()),
		}
	}
}

// Screenshot implements core.Driver.
func (d *Driver) Screenshot() ([]byte, error) {
	return d.page.Screenshot()
}

// PageSource implements core.Driver.
func (d *Driver) PageSource() ([]byte, error) {
	s, err := d.page.PageSource()
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// GetPlatformInfo implements core.Driver.
func (d *Driver) GetPlatformInfo() *core.PlatformInfo {
	return &core.PlatformInfo{
		Browser:   d.cfg.Browser,
		Backend:   d.cfg.Backend,
		SessionID: d.cfg.SessionID,
		BaseURL:   d.cfg.BaseURL,
		Headless:  d.cfg.Headless,
		Subject:   d.cfg.Subject,
	}
}

// stepTimeout returns the step's own timeout when it sets one.
func stepTimeout(step flow.Step, def time.Duration) time.Duration {
	if ms := step.Timeout(); ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}

// resolveURL resolves ref against the configured base URL.
func (d *Driver) resolveURL(ref string) (string, error) {
	if d.cfg.BaseURL == "" {
		return ref, nil
	}
	base, err := url.Parse(strings.TrimRight(d.cfg.BaseURL, "/") + "/")
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", d.cfg.BaseURL, err)
	}
	u, err := url.Parse(strings.TrimLeft(ref, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", ref, err)
	}
	if u.IsAbs() {
		return ref, nil
	}
	return base.ResolveReference(u).String(), nil
}

// parseDuration accepts Go durations and bare milliseconds.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(s)
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func successResult(msg string, elem *core.ElementInfo) *core.CommandResult {
	return &core.CommandResult{
		Success: true,
		Message: msg,
		Element: elem,
	}
}

func errorResult(err error, msg string) *core.CommandResult {
	if msg == "" && err != nil {
		msg = err.Error()
	}
	return &core.CommandResult{
		Success: false,
		Error:   err,
		Message: msg,
	}
}
