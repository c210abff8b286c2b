package mock

import (
	"fmt"

	"github.com/pookie-qa/pookie-runner/pkg/browser"
)

// element is a handle to a Node. Every method fails with browser.ErrStale
// once the node has been detached.
type element struct {
	page *Page
	node *Node
}

var _ browser.Element = (*element)(nil)

// NodeOf returns the node behind a mock element, or nil.
func NodeOf(el browser.Element) *Node {
	if e, ok := el.(*element); ok {
		return e.node
	}
	return nil
}

func (e *element) check() error {
	if e.page.closed {
		return errClosed
	}
	if e.node.detached {
		return fmt.Errorf("%w: %s", browser.ErrStale, e.node.describe())
	}
	return nil
}

func (e *element) FindElements(css string) ([]browser.Element, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if err := e.check(); err != nil {
		return nil, err
	}
	return e.page.find(e.node, css)
}

func (e *element) Click() error {
	e.page.mu.Lock()
	if err := e.check(); err != nil {
		e.page.mu.Unlock()
		return err
	}
	if !e.node.displayed() || e.node.RejectClick {
		e.page.record("click-rejected %s", e.node.describe())
		e.page.mu.Unlock()
		return fmt.Errorf("%w: %s", browser.ErrNotInteractable, e.node.describe())
	}
	e.page.record("click %s", e.node.describe())
	after := e.page.clickLocked(e.node)
	e.page.mu.Unlock()

	if after != nil {
		after()
	}
	return nil
}

func (e *element) Clear() error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if err := e.check(); err != nil {
		return err
	}
	if e.node.Attrs["readonly"] != "" {
		e.page.record("clear-rejected %s", e.node.describe())
		return fmt.Errorf("invalid element state: %s is read-only", e.node.describe())
	}
	if e.node.ClearErr != nil {
		e.page.record("clear-failed %s", e.node.describe())
		return e.node.ClearErr
	}
	e.node.Attrs["value"] = ""
	e.page.record("clear %s", e.node.describe())
	return nil
}

func (e *element) SendKeys(keys string) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if err := e.check(); err != nil {
		return err
	}
	n := e.node
	if keys == browser.KeyTab {
		if n.RejectTab {
			e.page.record("tab-rejected %s", n.describe())
			return fmt.Errorf("invalid element state: %s rejected tab", n.describe())
		}
		e.page.record("tab %s", n.describe())
		return nil
	}
	if n.RejectKeys || n.Attrs["readonly"] != "" || !n.displayed() {
		e.page.record("keys-rejected %s", n.describe())
		return fmt.Errorf("%w: %s", browser.ErrNotInteractable, n.describe())
	}
	e.page.record("keys %s", n.describe())
	if n.IgnoreTyping {
		return nil
	}
	n.setValue(n.Attrs["value"] + keys)
	return nil
}

func (e *element) Attribute(name string) (string, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if err := e.check(); err != nil {
		return "", err
	}
	return e.node.Attrs[name], nil
}

func (e *element) Text() (string, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if err := e.check(); err != nil {
		return "", err
	}
	return e.node.renderedText(), nil
}

func (e *element) IsDisplayed() (bool, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if err := e.check(); err != nil {
		return false, err
	}
	return e.node.displayed(), nil
}

func (e *element) TagName() (string, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if err := e.check(); err != nil {
		return "", err
	}
	return e.node.Tag, nil
}
