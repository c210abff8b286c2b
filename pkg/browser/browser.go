// Package browser defines the web-driver capability set consumed by the
// interaction layer. Backends live under pkg/driver.
package browser

import (
	"errors"
	"strings"
)

// Key codes understood by Element.SendKeys. Values follow the W3C
// WebDriver key table so they can be passed through unchanged.
const (
	KeyTab   = "\ue004"
	KeyEnter = "\ue007"
)

// Page is one browser tab. Implementations must be safe for sequential use
// by a single goroutine; sessions are never shared between flows.
type Page interface {
	Navigate(url string) error
	FindElements(css string) ([]Element, error)
	// ExecuteScript runs script as a function body. Element arguments are
	// passed by reference and are reachable as arguments[i].
	ExecuteScript(script string, args ...interface{}) (interface{}, error)
	CurrentURL() (string, error)
	Title() (string, error)
	Screenshot() ([]byte, error)
	PageSource() (string, error)
	Close() error
}

// Element is a handle into the DOM snapshot it was found in. Any method may
// return an error satisfying IsStale once the DOM has been replaced.
type Element interface {
	FindElements(css string) ([]Element, error)
	Click() error
	Clear() error
	SendKeys(keys string) error
	// Attribute returns the live property for "value", the attribute otherwise.
	Attribute(name string) (string, error)
	Text() (string, error)
	IsDisplayed() (bool, error)
	TagName() (string, error)
}

// ErrStale marks an element handle whose node left the DOM.
var ErrStale = errors.New("stale element reference")

// ErrNotInteractable marks an element that rejected a native interaction.
var ErrNotInteractable = errors.New("element not interactable")

// IsStale reports whether err comes from a stale element handle. Backend
// messages are matched as a fallback for errors that were not mapped.
func IsStale(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStale) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "stale element") ||
		strings.Contains(msg, "not attached to the dom") ||
		strings.Contains(msg, "element is detached")
}

// IsNotInteractable reports whether err is a rejected native interaction.
func IsNotInteractable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotInteractable) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not interactable") ||
		strings.Contains(msg, "invalid element state")
}

// AttrOrEmpty returns the attribute value, or "" on any error.
func AttrOrEmpty(el Element, name string) string {
	v, err := el.Attribute(name)
	if err != nil {
		return ""
	}
	return v
}

// TextOrEmpty returns the element text, or "" on any error.
func TextOrEmpty(el Element) string {
	v, err := el.Text()
	if err != nil {
		return ""
	}
	return v
}

// Displayed reports visibility, treating errors as hidden.
func Displayed(el Element) bool {
	ok, err := el.IsDisplayed()
	return err == nil && ok
}

// FirstDisplayed returns the first displayed element of els, or nil.
func FirstDisplayed(els []Element) Element {
	for _, el := range els {
		if Displayed(el) {
			return el
		}
	}
	return nil
}
