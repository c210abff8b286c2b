package selenium

import (
	"fmt"
	"strings"

	"github.com/pookie-qa/pookie-runner/pkg/browser"
)

// mapErr tags WebDriver errors with the browser sentinels. The client
// returns them as *selenium.Error or plain errors depending on the
// protocol dialect, so classification is by message.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "stale element reference"),
		strings.Contains(msg, "no such element: element_id"):
		return fmt.Errorf("%w: %v", browser.ErrStale, err)
	case strings.Contains(msg, "element not interactable"),
		strings.Contains(msg, "element click intercepted"),
		strings.Contains(msg, "invalid element state"),
		strings.Contains(msg, "element not visible"):
		return fmt.Errorf("%w: %v", browser.ErrNotInteractable, err)
	}
	return err
}

func isNilValue(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "nil return value")
}
