package interact

import (
	"context"

	"go.uber.org/zap"

	"github.com/pookie-qa/pookie-runner/pkg/browser"
	"github.com/pookie-qa/pookie-runner/pkg/core"
)

const (
	scrollIntoViewScript = "arguments[0].scrollIntoView({block:'center'});"
	scriptClickScript    = "arguments[0].click();"
)

// ClickElement clicks natively and, when the browser refuses (overlay,
// off-screen, zero size), scrolls the element to the centre and clicks it by
// script instead.
func (s *Session) ClickElement(ctx context.Context, el browser.Element, description string) error {
	err := el.Click()
	if err == nil {
		return nil
	}
	if browser.IsStale(err) {
		return core.StaleReference(description, err)
	}
	s.log.Debug("native click failed, clicking by script",
		zap.String("description", description), zap.Error(err))

	if _, err := s.Page.ExecuteScript(scrollIntoViewScript, el); err != nil {
		return wrapInputErr(description, err)
	}
	if err := s.Settle(ctx, ScriptSettle); err != nil {
		return err
	}
	if _, err := s.Page.ExecuteScript(scriptClickScript, el); err != nil {
		return wrapInputErr(description, err)
	}
	return nil
}

// Click locates css and clicks it with ClickElement, re-locating once when
// the handle goes stale between lookup and click.
func (s *Session) Click(ctx context.Context, css, description string) (browser.Element, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		el, err := s.Locate(ctx, css, description, 0)
		if err != nil {
			return nil, err
		}
		if lastErr = s.ClickElement(ctx, el, description); lastErr == nil {
			return el, nil
		}
		if !browser.IsStale(lastErr) {
			return nil, lastErr
		}
		s.log.Debug("stale before click, re-locating", zap.String("description", description))
	}
	return nil, lastErr
}
