package interact

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/pookie-qa/pookie-runner/pkg/browser"
	"github.com/pookie-qa/pookie-runner/pkg/core"
)

// SelectOutcome tells how a dropdown selection was resolved.
type SelectOutcome int

const (
	// Failed means neither the text nor the value matched an option.
	Failed SelectOutcome = iota
	// Matched means an option with the exact visible text was chosen.
	Matched
	// Fallback means the text was absent and the value matched instead.
	Fallback
)

func (o SelectOutcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case Fallback:
		return "fallback"
	default:
		return "failed"
	}
}

type option struct {
	el    browser.Element
	text  string
	value string
}

func readOptions(dropdown browser.Element) ([]option, error) {
	els, err := dropdown.FindElements("option")
	if err != nil {
		return nil, err
	}
	out := make([]option, 0, len(els))
	for _, el := range els {
		text, err := el.Text()
		if err != nil {
			return nil, err
		}
		value, err := el.Attribute("value")
		if err != nil {
			return nil, err
		}
		out = append(out, option{el: el, text: strings.TrimSpace(text), value: value})
	}
	return out, nil
}

func choose(o option) error {
	if sel := browser.AttrOrEmpty(o.el, "selected"); sel != "" && sel != "false" {
		return nil
	}
	return o.el.Click()
}

// SelectByTextOrValue picks the option whose visible text is text, or,
// failing that, the option whose value is value. A blank value disables the
// fallback. Failed comes with an OptionNotFound error; the other outcomes
// only carry an error when clicking the option fails.
func SelectByTextOrValue(dropdown browser.Element, text, value string) (SelectOutcome, error) {
	opts, err := readOptions(dropdown)
	if err != nil {
		return Failed, err
	}

	want := strings.TrimSpace(text)
	for _, o := range opts {
		if o.text == want {
			return Matched, choose(o)
		}
	}

	if strings.TrimSpace(value) != "" {
		for _, o := range opts {
			if o.value == value {
				return Fallback, choose(o)
			}
		}
	}

	return Failed, core.OptionNotFound(browser.AttrOrEmpty(dropdown, "id"), text)
}

// SelectByCandidates picks the first option matching any candidate, trying
// candidates in order. See TextMatchesCandidate.
func SelectByCandidates(dropdown browser.Element, candidates ...string) (string, error) {
	opts, err := readOptions(dropdown)
	if err != nil {
		return "", err
	}
	for _, c := range candidates {
		for _, o := range opts {
			if TextMatchesCandidate(o.text, c) {
				return o.text, choose(o)
			}
		}
	}
	return "", core.OptionNotFound(browser.AttrOrEmpty(dropdown, "id"), strings.Join(candidates, " | "))
}

// SelectDropdownOption resolves the dropdown through Locate, selects the
// option and waits for the resulting partial postback.
func (s *Session) SelectDropdownOption(ctx context.Context, css, description, text, value string) (SelectOutcome, error) {
	dropdown, err := s.Locate(ctx, css, description, s.Timeouts.Dropdown)
	if err != nil {
		return Failed, err
	}
	return s.SelectOption(ctx, dropdown, description, text, value)
}

// SelectOption selects on an already resolved dropdown, then waits for the
// update panel and the document and lets the page settle.
func (s *Session) SelectOption(ctx context.Context, dropdown browser.Element, description, text, value string) (SelectOutcome, error) {
	outcome, err := SelectByTextOrValue(dropdown, text, value)
	if err != nil {
		if browser.IsStale(err) {
			return Failed, core.StaleReference(description, err)
		}
		return outcome, err
	}
	s.log.Debug("option selected",
		zap.String("dropdown", description),
		zap.String("text", text),
		zap.Stringer("outcome", outcome))

	return outcome, s.afterSelect(ctx)
}

func (s *Session) afterSelect(ctx context.Context) error {
	if err := s.WaitForUpdatePanel(ctx, s.Timeouts.UpdatePanel); err != nil {
		return err
	}
	if err := s.WaitForReady(ctx, s.Timeouts.Ready); err != nil {
		return err
	}
	return s.Settle(ctx, DropdownSettle)
}

// SelectCandidateOn is SelectOption for a list of acceptable labels.
func (s *Session) SelectCandidateOn(ctx context.Context, dropdown browser.Element, description string, candidates ...string) (string, error) {
	chosen, err := SelectByCandidates(dropdown, candidates...)
	if err != nil {
		if browser.IsStale(err) {
			return "", core.StaleReference(description, err)
		}
		return "", err
	}
	return chosen, s.afterSelect(ctx)
}

// NormalizeOptionText collapses runs of whitespace and trims the result.
func NormalizeOptionText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TextMatchesCandidate reports whether an option label matches candidate,
// ignoring case and whitespace differences. A label also matches when the
// part before a parenthesised suffix does, so "Never (0)" matches "Never".
func TextMatchesCandidate(label, candidate string) bool {
	l := NormalizeOptionText(label)
	c := NormalizeOptionText(candidate)
	if c == "" {
		return false
	}
	if strings.EqualFold(l, c) {
		return true
	}
	if i := strings.Index(l, "("); i > 0 {
		return strings.EqualFold(strings.TrimSpace(l[:i]), c)
	}
	return false
}
