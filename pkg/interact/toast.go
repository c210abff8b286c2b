package interact

import (
	"context"
	"strings"
	"time"

	"github.com/pookie-qa/pookie-runner/pkg/browser"
	"github.com/pookie-qa/pookie-runner/pkg/wait"
	"github.com/pookie-qa/pookie-runner/pkg/webforms"
)

// Toast is a notification banner split into its parts.
type Toast struct {
	Heading string `json:"heading,omitempty"`
	Body    string `json:"body,omitempty"`
	Text    string `json:"text"`
}

// GetToastMessage waits delay, then returns the text of the first toast
// with any text, or "" when none is showing.
func (s *Session) GetToastMessage(ctx context.Context, delay time.Duration) (string, error) {
	if err := s.Settle(ctx, delay); err != nil {
		return "", err
	}
	els, err := s.Page.FindElements(webforms.Toast)
	if err != nil {
		return "", err
	}
	for _, el := range els {
		if t := strings.TrimSpace(browser.TextOrEmpty(el)); t != "" {
			return t, nil
		}
	}
	return "", nil
}

// WaitForSuccessToast waits for a success toast with text.
func (s *Session) WaitForSuccessToast(ctx context.Context, timeout time.Duration) (Toast, error) {
	return s.WaitForToast(ctx, webforms.SuccessToast, timeout)
}

// WaitForToast waits for a displayed element matching css with text and
// splits it into heading and body.
func (s *Session) WaitForToast(ctx context.Context, css string, timeout time.Duration) (Toast, error) {
	timeout = orDefault(timeout, s.Timeouts.Toast)
	return wait.Poll(ctx, s.opts("toast notification", timeout), func(ctx context.Context) (Toast, bool, error) {
		els, err := s.Page.FindElements(css)
		if err != nil {
			return Toast{}, false, err
		}
		for _, el := range els {
			if !browser.Displayed(el) {
				continue
			}
			text, err := el.Text()
			if err != nil {
				return Toast{}, false, err
			}
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			return splitToast(el, text), true, nil
		}
		return Toast{}, false, nil
	})
}

func splitToast(el browser.Element, text string) Toast {
	t := Toast{Text: text}
	if hs, err := el.FindElements(webforms.ToastHeading); err == nil && len(hs) > 0 {
		t.Heading = strings.TrimSpace(browser.TextOrEmpty(hs[0]))
	}
	body := strings.TrimSpace(strings.TrimPrefix(text, webforms.ToastClose))
	if t.Heading != "" {
		body = strings.TrimSpace(strings.Replace(body, t.Heading, "", 1))
	}
	t.Body = body
	return t
}

// ValidationMessages returns the text of every displayed validation
// element, in document order, skipping blanks.
func (s *Session) ValidationMessages() ([]string, error) {
	els, err := s.Page.FindElements(webforms.ValidationSummary)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, el := range els {
		if !browser.Displayed(el) {
			continue
		}
		if t := strings.TrimSpace(browser.TextOrEmpty(el)); t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

// ValidationSummary returns the first displayed validation text, or "".
func (s *Session) ValidationSummary() (string, error) {
	msgs, err := s.ValidationMessages()
	if err != nil || len(msgs) == 0 {
		return "", err
	}
	return msgs[0], nil
}
