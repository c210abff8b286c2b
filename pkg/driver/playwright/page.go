// Package playwright adapts a playwright-go page to browser.Page so flows
// can run without a chromedriver install.
package playwright

import (
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"

	"github.com/pookie-qa/pookie-runner/pkg/browser"
)

// scriptWrapper turns a WebDriver-style script body, which reads its inputs
// from `arguments`, into a function Playwright can evaluate with one array
// argument.
const scriptWrapper = "(args) => (function() { %s }).apply(null, args)"

const tagNameScript = "el => el.tagName.toLowerCase()"

// selectOptionScript selects an <option> and fires the events a user
// selection would.
const selectOptionScript = `o => {
	const s = o.closest('select');
	o.selected = true;
	if (s) {
		s.dispatchEvent(new Event('input', { bubbles: true }));
		s.dispatchEvent(new Event('change', { bubbles: true }));
	}
}`

var specialKeys = map[string]string{
	browser.KeyTab:   "Tab",
	browser.KeyEnter: "Enter",
}

// Page is one Playwright page together with the browser that owns it.
type Page struct {
	page    playwright.Page
	closers []func() error
	closed  bool
}

var _ browser.Page = (*Page)(nil)

// Wrap adapts an existing playwright page. Close only closes the page.
func Wrap(page playwright.Page) *Page {
	return &Page{page: page}
}

// Navigate implements browser.Page.
func (p *Page) Navigate(url string) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	return mapErr(err)
}

// FindElements implements browser.Page.
func (p *Page) FindElements(css string) ([]browser.Element, error) {
	hs, err := p.page.QuerySelectorAll(css)
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapAll(hs), nil
}

// ExecuteScript implements browser.Page with WebDriver argument semantics.
func (p *Page) ExecuteScript(script string, args ...interface{}) (interface{}, error) {
	raw := make([]interface{}, len(args))
	for i, a := range args {
		if el, ok := a.(*element); ok {
			raw[i] = el.h
			continue
		}
		raw[i] = a
	}
	v, err := p.page.Evaluate(fmt.Sprintf(scriptWrapper, script), raw)
	return v, mapErr(err)
}

// CurrentURL implements browser.Page.
func (p *Page) CurrentURL() (string, error) {
	return p.page.URL(), nil
}

// Title implements browser.Page.
func (p *Page) Title() (string, error) {
	t, err := p.page.Title()
	return t, mapErr(err)
}

// Screenshot implements browser.Page.
func (p *Page) Screenshot() ([]byte, error) {
	b, err := p.page.Screenshot(playwright.PageScreenshotOptions{FullPage: playwright.Bool(true)})
	return b, mapErr(err)
}

// PageSource implements browser.Page.
func (p *Page) PageSource() (string, error) {
	s, err := p.page.Content()
	return s, mapErr(err)
}

// Close closes the page, then the browser and driver started by Launch.
func (p *Page) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []string
	if err := p.page.Close(); err != nil {
		errs = append(errs, fmt.Sprintf("close page: %v", err))
	}
	for _, c := range p.closers {
		if err := c(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

type element struct {
	h playwright.ElementHandle
}

var _ browser.Element = (*element)(nil)

func wrapAll(hs []playwright.ElementHandle) []browser.Element {
	out := make([]browser.Element, len(hs))
	for i, h := range hs {
		out[i] = &element{h: h}
	}
	return out
}

func (e *element) FindElements(css string) ([]browser.Element, error) {
	hs, err := e.h.QuerySelectorAll(css)
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapAll(hs), nil
}

// Click clicks the element. Options inside a native select cannot be
// clicked in Chromium, so they are selected by script.
func (e *element) Click() error {
	tag, err := e.TagName()
	if err != nil {
		return err
	}
	if tag == "option" {
		_, err := e.h.Evaluate(selectOptionScript)
		return mapErr(err)
	}
	return mapErr(e.h.Click())
}

func (e *element) Clear() error {
	return mapErr(e.h.Fill(""))
}

// SendKeys appends keys to the current value. Tab and Enter are pressed.
func (e *element) SendKeys(keys string) error {
	if key, ok := specialKeys[keys]; ok {
		return mapErr(e.h.Press(key))
	}
	current, err := e.h.InputValue()
	if err != nil {
		return mapErr(err)
	}
	return mapErr(e.h.Fill(current + keys))
}

// Attribute reads the live value for form controls, like WebDriver does.
func (e *element) Attribute(name string) (string, error) {
	if name == "value" {
		tag, err := e.TagName()
		if err != nil {
			return "", err
		}
		switch tag {
		case "input", "select", "textarea":
			v, err := e.h.InputValue()
			return v, mapErr(err)
		}
	}
	v, err := e.h.GetAttribute(name)
	return v, mapErr(err)
}

func (e *element) Text() (string, error) {
	t, err := e.h.InnerText()
	return t, mapErr(err)
}

func (e *element) IsDisplayed() (bool, error) {
	ok, err := e.h.IsVisible()
	return ok, mapErr(err)
}

func (e *element) TagName() (string, error) {
	v, err := e.h.Evaluate(tagNameScript)
	if err != nil {
		return "", mapErr(err)
	}
	tag, _ := v.(string)
	return tag, nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not attached to the dom"),
		strings.Contains(msg, "element is detached"),
		strings.Contains(msg, "handle is disposed"):
		return fmt.Errorf("%w: %v", browser.ErrStale, err)
	case notInteractable(msg):
		return fmt.Errorf("%w: %v", browser.ErrNotInteractable, err)
	}
	return err
}

// elementStates are the call log lines playwright writes while an action
// waits on the element itself. A timeout without one of them, such as a
// navigation timeout, is passed through unchanged.
var elementStates = []string{
	"intercepts pointer events",
	"element is not visible",
	"element is not enabled",
	"element is not editable",
	"element is not stable",
	"element is outside of the viewport",
	"waiting for element to be visible",
}

func notInteractable(msg string) bool {
	for _, state := range elementStates {
		if strings.Contains(msg, state) {
			return true
		}
	}
	return false
}
