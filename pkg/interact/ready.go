package interact

import (
	"context"
	"time"

	"github.com/pookie-qa/pookie-runner/pkg/browser"
	"github.com/pookie-qa/pookie-runner/pkg/wait"
	"github.com/pookie-qa/pookie-runner/pkg/webforms"
)

const readyStateScript = `return document.readyState === 'complete' &&
	(typeof jQuery === 'undefined' || jQuery.active === 0);`

const updatePanelIdleScript = `if (typeof Sys === 'undefined' || !Sys.WebForms || !Sys.WebForms.PageRequestManager) {
	return true;
}
return !Sys.WebForms.PageRequestManager.getInstance().get_isInAsyncPostBack();`

// WaitForReady blocks until the document has loaded and no jQuery request
// is in flight.
func (s *Session) WaitForReady(ctx context.Context, timeout time.Duration) error {
	timeout = orDefault(timeout, s.Timeouts.Ready)
	return wait.Until(ctx, s.opts("document ready", timeout), func(ctx context.Context) (bool, error) {
		v, err := s.Page.ExecuteScript(readyStateScript)
		if err != nil {
			return false, err
		}
		return truthy(v), nil
	})
}

// WaitForUpdatePanel blocks until no partial postback is in flight and no
// update-progress indicator is showing.
func (s *Session) WaitForUpdatePanel(ctx context.Context, timeout time.Duration) error {
	timeout = orDefault(timeout, s.Timeouts.UpdatePanel)
	return wait.Until(ctx, s.opts("update panel idle", timeout), func(ctx context.Context) (bool, error) {
		v, err := s.Page.ExecuteScript(updatePanelIdleScript)
		if err != nil {
			return false, err
		}
		if !truthy(v) {
			return false, nil
		}
		spinners, err := s.Page.FindElements(webforms.UpdateProgress)
		if err != nil {
			return false, err
		}
		return browser.FirstDisplayed(spinners) == nil, nil
	})
}

// WaitForPostback runs both gates, update panel first.
func (s *Session) WaitForPostback(ctx context.Context, timeout time.Duration) error {
	if err := s.WaitForUpdatePanel(ctx, timeout); err != nil {
		return err
	}
	return s.WaitForReady(ctx, timeout)
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "complete"
	default:
		return false
	}
}
