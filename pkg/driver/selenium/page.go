// Package selenium adapts a W3C WebDriver session (tebeka/selenium) to
// browser.Page. Sessions talk to a local chromedriver started by Launch or
// to a remote grid.
package selenium

import (
	"fmt"
	"strings"

	"github.com/tebeka/selenium"

	"github.com/pookie-qa/pookie-runner/pkg/browser"
)

// Page is one WebDriver session.
type Page struct {
	wd      selenium.WebDriver
	service *selenium.Service
	closed  bool
}

var _ browser.Page = (*Page)(nil)

// Wrap adapts an existing WebDriver. Close quits the session but leaves any
// chromedriver process to the caller.
func Wrap(wd selenium.WebDriver) *Page {
	return &Page{wd: wd}
}

// SessionID returns the WebDriver session id.
func (p *Page) SessionID() string {
	return p.wd.SessionID()
}

// Navigate implements browser.Page.
func (p *Page) Navigate(url string) error {
	return mapErr(p.wd.Get(url))
}

// FindElements implements browser.Page.
func (p *Page) FindElements(css string) ([]browser.Element, error) {
	els, err := p.wd.FindElements(selenium.ByCSSSelector, css)
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapAll(els), nil
}

// ExecuteScript implements browser.Page. Element arguments are unwrapped so
// the remote end receives element references.
func (p *Page) ExecuteScript(script string, args ...interface{}) (interface{}, error) {
	raw := make([]interface{}, len(args))
	for i, a := range args {
		if el, ok := a.(*element); ok {
			raw[i] = el.we
			continue
		}
		raw[i] = a
	}
	v, err := p.wd.ExecuteScript(script, raw)
	return v, mapErr(err)
}

// CurrentURL implements browser.Page.
func (p *Page) CurrentURL() (string, error) {
	u, err := p.wd.CurrentURL()
	return u, mapErr(err)
}

// Title implements browser.Page.
func (p *Page) Title() (string, error) {
	t, err := p.wd.Title()
	return t, mapErr(err)
}

// Screenshot implements browser.Page.
func (p *Page) Screenshot() ([]byte, error) {
	b, err := p.wd.Screenshot()
	return b, mapErr(err)
}

// PageSource implements browser.Page.
func (p *Page) PageSource() (string, error) {
	s, err := p.wd.PageSource()
	return s, mapErr(err)
}

// Close quits the session and stops the chromedriver started by Launch.
// Calling it twice is a no-op.
func (p *Page) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []string
	if err := p.wd.Quit(); err != nil {
		errs = append(errs, fmt.Sprintf("quit session: %v", err))
	}
	if p.service != nil {
		if err := p.service.Stop(); err != nil {
			errs = append(errs, fmt.Sprintf("stop chromedriver: %v", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

type element struct {
	we selenium.WebElement
}

var _ browser.Element = (*element)(nil)

func wrapAll(els []selenium.WebElement) []browser.Element {
	out := make([]browser.Element, len(els))
	for i, we := range els {
		out[i] = &element{we: we}
	}
	return out
}

func (e *element) FindElements(css string) ([]browser.Element, error) {
	els, err := e.we.FindElements(selenium.ByCSSSelector, css)
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapAll(els), nil
}

func (e *element) Click() error { return mapErr(e.we.Click()) }

func (e *element) Clear() error { return mapErr(e.we.Clear()) }

func (e *element) SendKeys(keys string) error { return mapErr(e.we.SendKeys(keys)) }

// Attribute returns "" for attributes the element does not carry, which the
// client reports as a nil return value.
func (e *element) Attribute(name string) (string, error) {
	v, err := e.we.GetAttribute(name)
	if err != nil {
		if isNilValue(err) {
			return "", nil
		}
		return "", mapErr(err)
	}
	return v, nil
}

func (e *element) Text() (string, error) {
	t, err := e.we.Text()
	return t, mapErr(err)
}

func (e *element) IsDisplayed() (bool, error) {
	ok, err := e.we.IsDisplayed()
	return ok, mapErr(err)
}

func (e *element) TagName() (string, error) {
	t, err := e.we.TagName()
	return strings.ToLower(t), mapErr(err)
}
