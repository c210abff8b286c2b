package selenium

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"

	"github.com/pookie-qa/pookie-runner/pkg/browser"
)

// fakeWD implements the parts of selenium.WebDriver the adapter uses. The
// embedded interface panics on anything else.
type fakeWD struct {
	selenium.WebDriver

	elements   []selenium.WebElement
	findErr    error
	byUsed     string
	scriptArgs []interface{}
	scriptErr  error
	quitCalls  int
}

func (f *fakeWD) FindElements(by, value string) ([]selenium.WebElement, error) {
	f.byUsed = by
	return f.elements, f.findErr
}

func (f *fakeWD) ExecuteScript(script string, args []interface{}) (interface{}, error) {
	f.scriptArgs = args
	return true, f.scriptErr
}

func (f *fakeWD) Get(string) error            { return nil }
func (f *fakeWD) CurrentURL() (string, error) { return "https://app/Pages/CaseHome.aspx", nil }
func (f *fakeWD) Quit() error                 { f.quitCalls++; return nil }

type fakeWE struct {
	selenium.WebElement

	id       string
	tag      string
	attrs    map[string]string
	clickErr error
	keys     string
}

func (f *fakeWE) Click() error               { return f.clickErr }
func (f *fakeWE) SendKeys(keys string) error { f.keys += keys; return nil }
func (f *fakeWE) TagName() (string, error)   { return f.tag, nil }

func (f *fakeWE) GetAttribute(name string) (string, error) {
	v, ok := f.attrs[name]
	if !ok {
		return "", errors.New("nil return value")
	}
	return v, nil
}

func TestPage_FindElementsUsesCSS(t *testing.T) {
	wd := &fakeWD{elements: []selenium.WebElement{&fakeWE{id: "a"}, &fakeWE{id: "b"}}}
	p := Wrap(wd)

	els, err := p.FindElements("select[id$='ddlHowOften']")
	require.NoError(t, err)
	assert.Len(t, els, 2)
	assert.Equal(t, selenium.ByCSSSelector, wd.byUsed)
}

func TestPage_ExecuteScriptUnwrapsElements(t *testing.T) {
	we := &fakeWE{id: "txtDate"}
	wd := &fakeWD{elements: []selenium.WebElement{we}}
	p := Wrap(wd)

	els, err := p.FindElements("#txtDate")
	require.NoError(t, err)

	_, err = p.ExecuteScript("arguments[0].value = arguments[1];", els[0], "10/25/25")
	require.NoError(t, err)
	require.Len(t, wd.scriptArgs, 2)
	assert.Same(t, we, wd.scriptArgs[0])
	assert.Equal(t, "10/25/25", wd.scriptArgs[1])
}

func TestElement_AttributeMissingIsEmpty(t *testing.T) {
	el := &element{we: &fakeWE{attrs: map[string]string{"value": "3"}}}

	v, err := el.Attribute("value")
	require.NoError(t, err)
	assert.Equal(t, "3", v)

	v, err = el.Attribute("readonly")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestElement_TagNameLowercased(t *testing.T) {
	el := &element{we: &fakeWE{tag: "SELECT"}}
	tag, err := el.TagName()
	require.NoError(t, err)
	assert.Equal(t, "select", tag)
}

func TestElement_ClickErrorsAreClassified(t *testing.T) {
	stale := &element{we: &fakeWE{clickErr: errors.New("stale element reference: element is not attached to the page document")}}
	assert.True(t, browser.IsStale(stale.Click()))

	blocked := &element{we: &fakeWE{clickErr: errors.New("element click intercepted: Element <a> is not clickable at point (10, 20)")}}
	assert.True(t, browser.IsNotInteractable(blocked.Click()))

	other := &element{we: &fakeWE{clickErr: errors.New("unknown error")}}
	err := other.Click()
	assert.False(t, browser.IsStale(err))
	assert.False(t, browser.IsNotInteractable(err))
}

func TestElement_SendKeysPassesTab(t *testing.T) {
	we := &fakeWE{}
	el := &element{we: we}
	require.NoError(t, el.SendKeys("10/25/25"))
	require.NoError(t, el.SendKeys(browser.KeyTab))
	assert.Equal(t, "10/25/25"+browser.KeyTab, we.keys)
}

func TestPage_CloseIsIdempotent(t *testing.T) {
	wd := &fakeWD{}
	p := Wrap(wd)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, wd.quitCalls)
}

func TestMapErr(t *testing.T) {
	assert.NoError(t, mapErr(nil))
	err := mapErr(errors.New("Stale Element Reference"))
	assert.True(t, errors.Is(err, browser.ErrStale))
	assert.Contains(t, err.Error(), "Stale Element Reference")
	assert.True(t, errors.Is(mapErr(errors.New("invalid element state: element is read-only")), browser.ErrNotInteractable))
}

func TestCapabilities(t *testing.T) {
	caps := Capabilities(Config{Headless: true, ChromeBinary: "/opt/chrome", Args: []string{"--lang=en"}})
	assert.Equal(t, "chrome", caps["browserName"])

	var opts chrome.Capabilities
	for _, v := range caps {
		if c, ok := v.(chrome.Capabilities); ok {
			opts = c
		}
	}
	assert.Equal(t, "/opt/chrome", opts.Path)
	assert.Contains(t, opts.Args, "--headless=new")
	assert.Contains(t, opts.Args, "--window-size=1920,1080")
	assert.Contains(t, opts.Args, "--lang=en")
}

func TestFindChromeDriver_Explicit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chromedriver")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))

	got, err := FindChromeDriver(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)
}
