package interact

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/pookie-qa/pookie-runner/pkg/browser"
	"github.com/pookie-qa/pookie-runner/pkg/core"
)

// Scripts used by the input setter. The application's date pickers listen
// for bubbling change and blur events, so both are dispatched explicitly.
const (
	setValueScript = "arguments[0].value = arguments[1]; arguments[0].dispatchEvent(new Event('change', { bubbles: true }));"
	unlockScript   = "arguments[0].removeAttribute('readonly');"
	blurScript     = "arguments[0].dispatchEvent(new Event('blur', { bubbles: true }));"
)

// Strategy names the escalation step that made an input converge.
type Strategy int

const (
	// Typed: clear and keystrokes were enough.
	Typed Strategy = iota + 1
	// Scripted: the value was assigned by script with a change event.
	Scripted
	// Unlocked: readonly had to be removed before the scripted assignment.
	Unlocked
)

func (s Strategy) String() string {
	switch s {
	case Typed:
		return "typed"
	case Scripted:
		return "scripted"
	case Unlocked:
		return "unlocked"
	default:
		return "none"
	}
}

// SetInputValue writes value into input, escalating from keystrokes to a
// scripted assignment and then to an unlocked scripted assignment. Each step
// is followed by a read-back compared case-insensitively; the first match
// ends the escalation. Only not-interactable errors move a step on; any
// other error ends the call. With blur set, a Tab keystroke and a blur event are
// sent afterwards; a rejected Tab is ignored.
func (s *Session) SetInputValue(ctx context.Context, input browser.Element, value, field string, blur bool) (Strategy, error) {
	log := s.log.With(zap.String("field", field))

	if err := typeValue(input, value); err != nil {
		if !browser.IsNotInteractable(err) {
			return 0, wrapInputErr(field, err)
		}
		log.Debug("keystrokes rejected", zap.Error(err))
	}
	observed, err := readValue(input)
	if err != nil {
		return 0, wrapInputErr(field, err)
	}
	strategy := Typed

	if !converged(observed, value) {
		log.Debug("escalating to script", zap.String("observed", observed))
		if observed, err = s.scriptValue(ctx, input, value); err != nil {
			return 0, wrapInputErr(field, err)
		}
		strategy = Scripted
	}

	if !converged(observed, value) {
		log.Debug("escalating to unlock", zap.String("observed", observed))
		if _, err := s.Page.ExecuteScript(unlockScript, input); err != nil {
			return 0, wrapInputErr(field, err)
		}
		if err := input.Clear(); err != nil {
			if !browser.IsNotInteractable(err) {
				return 0, wrapInputErr(field, err)
			}
			log.Debug("clear after unlock failed", zap.Error(err))
		}
		if observed, err = s.scriptValue(ctx, input, value); err != nil {
			return 0, wrapInputErr(field, err)
		}
		strategy = Unlocked
	}

	if !converged(observed, value) {
		return 0, core.ValueNotSet(field, value, observed)
	}
	log.Debug("value set", zap.Stringer("strategy", strategy))

	if blur {
		if err := s.blur(ctx, input); err != nil {
			return strategy, wrapInputErr(field, err)
		}
	}
	return strategy, nil
}

func typeValue(input browser.Element, value string) error {
	if err := input.Clear(); err != nil {
		return err
	}
	return input.SendKeys(value)
}

func (s *Session) scriptValue(ctx context.Context, input browser.Element, value string) (string, error) {
	if _, err := s.Page.ExecuteScript(setValueScript, input, value); err != nil {
		return "", err
	}
	if err := s.Settle(ctx, ScriptSettle); err != nil {
		return "", err
	}
	return readValue(input)
}

func (s *Session) blur(ctx context.Context, input browser.Element) error {
	if err := input.SendKeys(browser.KeyTab); err != nil {
		s.log.Debug("tab rejected, relying on blur event", zap.Error(err))
	}
	if _, err := s.Page.ExecuteScript(blurScript, input); err != nil {
		return err
	}
	return s.Settle(ctx, ScriptSettle)
}

func readValue(input browser.Element) (string, error) {
	v, err := input.Attribute("value")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(v), nil
}

func converged(observed, want string) bool {
	return strings.EqualFold(observed, want)
}

func wrapInputErr(field string, err error) error {
	if browser.IsStale(err) {
		return core.StaleReference(field, err)
	}
	return err
}
