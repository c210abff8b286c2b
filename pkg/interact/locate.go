package interact

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pookie-qa/pookie-runner/pkg/browser"
	"github.com/pookie-qa/pookie-runner/pkg/core"
	"github.com/pookie-qa/pookie-runner/pkg/wait"
	"github.com/pookie-qa/pookie-runner/pkg/webforms"
)

// Locate returns the first visible element matching css, preferring the
// subtree of an open modal over the rest of the page.
func (s *Session) Locate(ctx context.Context, css, description string, timeout time.Duration) (browser.Element, error) {
	timeout = orDefault(timeout, s.Timeouts.Locate)
	return wait.Poll(ctx, s.opts(description, timeout), func(ctx context.Context) (browser.Element, bool, error) {
		if modal, err := s.OpenModal(); err != nil {
			return nil, false, err
		} else if modal != nil {
			els, err := modal.FindElements(css)
			if err != nil {
				return nil, false, err
			}
			if el := browser.FirstDisplayed(els); el != nil {
				s.log.Debug("located in modal", zap.String("description", description), zap.String("selector", css))
				return el, true, nil
			}
		}

		els, err := s.Page.FindElements(css)
		if err != nil {
			return nil, false, err
		}
		if el := browser.FirstDisplayed(els); el != nil {
			s.log.Debug("located on page", zap.String("description", description), zap.String("selector", css))
			return el, true, nil
		}
		return nil, false, nil
	})
}

// LocateOnPage is Locate without the modal preference.
func (s *Session) LocateOnPage(ctx context.Context, css, description string, timeout time.Duration) (browser.Element, error) {
	timeout = orDefault(timeout, s.Timeouts.Locate)
	return s.LocateWithin(ctx, s.Page, css, description, timeout)
}

// LocateWithin returns the first visible match under root.
func (s *Session) LocateWithin(ctx context.Context, root Finder, css, description string, timeout time.Duration) (browser.Element, error) {
	return wait.Poll(ctx, s.opts(description, timeout), func(ctx context.Context) (browser.Element, bool, error) {
		els, err := root.FindElements(css)
		if err != nil {
			return nil, false, err
		}
		el := browser.FirstDisplayed(els)
		return el, el != nil, nil
	})
}

// OpenModal returns the first modal container that is showing, or nil.
func (s *Session) OpenModal() (browser.Element, error) {
	els, err := s.Page.FindElements(webforms.OpenModal)
	if err != nil {
		return nil, err
	}
	for _, el := range els {
		if IsModalDisplayed(el) {
			return el, nil
		}
	}
	return nil, nil
}

// IsModalDisplayed judges a modal container by its displayed flag, a shown
// class token or an inline display:block. An inline display:none overrides
// the other two, since a closing dialog keeps its classes for a moment.
func IsModalDisplayed(el browser.Element) bool {
	style := strings.ReplaceAll(strings.ToLower(browser.AttrOrEmpty(el, "style")), " ", "")
	if strings.Contains(style, "display:none") {
		return false
	}
	if browser.Displayed(el) {
		return true
	}
	for _, tok := range strings.Fields(browser.AttrOrEmpty(el, "class")) {
		if tok == "in" || tok == "show" {
			return true
		}
	}
	return strings.Contains(style, "display:block")
}

// WaitForModal waits until an element matching css is showing as a modal.
func (s *Session) WaitForModal(ctx context.Context, css, description string, timeout time.Duration) (browser.Element, error) {
	timeout = orDefault(timeout, s.Timeouts.Modal)
	return wait.Poll(ctx, s.opts(description, timeout), func(ctx context.Context) (browser.Element, bool, error) {
		els, err := s.Page.FindElements(css)
		if err != nil {
			return nil, false, err
		}
		for _, el := range els {
			if IsModalDisplayed(el) {
				return el, true, nil
			}
		}
		return nil, false, nil
	})
}

// WaitForModalToClose waits until modal stops showing. A modal removed from
// the document counts as closed.
func (s *Session) WaitForModalToClose(ctx context.Context, modal browser.Element, timeout time.Duration) error {
	timeout = orDefault(timeout, s.Timeouts.Modal)
	return wait.Until(ctx, s.opts("modal to close", timeout), func(ctx context.Context) (bool, error) {
		if _, err := modal.TagName(); err != nil {
			if browser.IsStale(err) {
				return true, nil
			}
			return false, err
		}
		return !IsModalDisplayed(modal), nil
	})
}

// WaitForModalsClosed waits until nothing matching css is showing as a modal.
func (s *Session) WaitForModalsClosed(ctx context.Context, css string, timeout time.Duration) error {
	if css == "" {
		css = webforms.OpenModal
	}
	timeout = orDefault(timeout, s.Timeouts.Modal)
	return wait.Until(ctx, s.opts("modal to close", timeout), func(ctx context.Context) (bool, error) {
		els, err := s.Page.FindElements(css)
		if err != nil {
			return false, err
		}
		for _, el := range els {
			if IsModalDisplayed(el) {
				return false, nil
			}
		}
		return true, nil
	})
}

// FindModalElement returns the first displayed element inside modal that
// matches one of selectors, tried in order.
func FindModalElement(modal browser.Element, selectors ...string) (browser.Element, error) {
	for _, css := range selectors {
		els, err := modal.FindElements(css)
		if err != nil {
			if browser.IsStale(err) {
				return nil, core.StaleReference("modal", err)
			}
			continue
		}
		if el := browser.FirstDisplayed(els); el != nil {
			return el, nil
		}
	}
	return nil, core.ErrNotFound.WithMessage(
		fmt.Sprintf("Modal element matching selectors '%s' was not found.", strings.Join(selectors, ", ")))
}

// WaitForElementInDOM returns the first element matching css, displayed or
// not, once one is present.
func (s *Session) WaitForElementInDOM(ctx context.Context, css string, timeout time.Duration) (browser.Element, error) {
	return s.WaitForElementIn(ctx, s.Page, css, timeout)
}

// WaitForElementIn is WaitForElementInDOM scoped to root.
func (s *Session) WaitForElementIn(ctx context.Context, root Finder, css string, timeout time.Duration) (browser.Element, error) {
	timeout = orDefault(timeout, s.Timeouts.Locate)
	return wait.Poll(ctx, s.opts(css, timeout), func(ctx context.Context) (browser.Element, bool, error) {
		els, err := root.FindElements(css)
		if err != nil {
			return nil, false, err
		}
		if len(els) == 0 {
			return nil, false, nil
		}
		return els[0], true, nil
	})
}

// Describe summarises an element for results and logs.
func Describe(el browser.Element) *core.ElementInfo {
	if el == nil {
		return nil
	}
	tag, _ := el.TagName()
	info := &core.ElementInfo{
		Tag:     tag,
		ID:      browser.AttrOrEmpty(el, "id"),
		Name:    browser.AttrOrEmpty(el, "name"),
		Class:   browser.AttrOrEmpty(el, "class"),
		Text:    strings.TrimSpace(browser.TextOrEmpty(el)),
		Visible: browser.Displayed(el),
	}
	switch tag {
	case "input", "select", "textarea":
		info.Value = browser.AttrOrEmpty(el, "value")
	}
	return info
}
