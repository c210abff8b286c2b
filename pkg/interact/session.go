// Package interact is the resilient element-interaction layer: scoped
// element lookup, dropdown selection with value fallback, an escalating
// input setter and the postback readiness gate, all on top of wait.Poll.
//
// A Session carries everything a helper needs. Nothing is read from
// package state, so sessions for different subjects can run side by side.
package interact

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pookie-qa/pookie-runner/pkg/browser"
	"github.com/pookie-qa/pookie-runner/pkg/logger"
	"github.com/pookie-qa/pookie-runner/pkg/wait"
)

// Settle delays used after actions that may start client-side work.
const (
	ScriptSettle   = 200 * time.Millisecond
	DropdownSettle = 250 * time.Millisecond
)

// Timeouts are the default budgets of the wait-style helpers.
type Timeouts struct {
	Locate      time.Duration
	Dropdown    time.Duration
	Ready       time.Duration
	UpdatePanel time.Duration
	Modal       time.Duration
	Toast       time.Duration
	RowAppear   time.Duration
	RowRemoval  time.Duration
}

// DefaultTimeouts returns the budgets the form suites were tuned with.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Locate:      10 * time.Second,
		Dropdown:    15 * time.Second,
		Ready:       5 * time.Second,
		UpdatePanel: 5 * time.Second,
		Modal:       10 * time.Second,
		Toast:       10 * time.Second,
		RowAppear:   10 * time.Second,
		RowRemoval:  15 * time.Second,
	}
}

// Finder is anything elements can be searched under: a page or an element.
type Finder interface {
	FindElements(css string) ([]browser.Element, error)
}

// Session binds the helpers to one browser page.
type Session struct {
	Page     browser.Page
	Timeouts Timeouts
	// Interval is the poll interval; zero uses wait.DefaultInterval.
	Interval time.Duration

	log   *zap.Logger
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the structured logger. The default is logger.L().
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithTimeouts overrides the default budgets.
func WithTimeouts(t Timeouts) Option {
	return func(s *Session) { s.Timeouts = t }
}

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(s *Session) { s.Interval = d }
}

// WithSleep replaces the settle sleeper. Tests pass a no-op.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Session) { s.sleep = fn }
}

// NewSession creates a session over page.
func NewSession(page browser.Page, opts ...Option) *Session {
	s := &Session{
		Page:     page,
		Timeouts: DefaultTimeouts(),
		sleep:    wait.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.L()
	}
	return s
}

// Logger returns the session logger.
func (s *Session) Logger() *zap.Logger { return s.log }

// Settle pauses for d so client-side handlers can finish.
func (s *Session) Settle(ctx context.Context, d time.Duration) error {
	return s.sleep(ctx, d)
}

func (s *Session) opts(description string, timeout time.Duration) wait.Options {
	return wait.Options{Description: description, Timeout: timeout, Interval: s.Interval}
}

// optsEvery is opts with a helper-specific interval, unless the session
// overrides it.
func (s *Session) optsEvery(description string, timeout, interval time.Duration) wait.Options {
	o := s.opts(description, timeout)
	if o.Interval == 0 {
		o.Interval = interval
	}
	return o
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
