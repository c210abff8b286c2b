package core

import (
	"context"
	"time"

	"github.com/pookie-qa/pookie-runner/pkg/flow"
)

// Driver executes individual flow steps against one browser session.
// The Runner handles flow logic; Driver just executes commands.
type Driver interface {
	// Execute runs a single step and returns the result
	Execute(ctx context.Context, step flow.Step) *CommandResult

	// Screenshot captures the current viewport as PNG
	Screenshot() ([]byte, error)

	// PageSource returns the current DOM serialized as HTML
	PageSource() ([]byte, error)

	// GetPlatformInfo returns browser/session information
	GetPlatformInfo() *PlatformInfo
}

// CommandResult represents the outcome of executing a single command
type CommandResult struct {
	// Core outcome
	Success  bool          `json:"success"`
	Error    error         `json:"-"`
	Duration time.Duration `json:"duration"`

	// Human-readable output
	Message string `json:"message,omitempty"`

	// Element interacted with (click, setInput, selectOption, assertions)
	Element *ElementInfo `json:"element,omitempty"`

	// Generic data for command-specific results
	// Examples: toast text, captured query parameter, validation summary
	Data interface{} `json:"data,omitempty"`

	// Debug information (internal details, not for reporting)
	Debug interface{} `json:"-"`
}

// ElementInfo represents information about a DOM element
type ElementInfo struct {
	Tag        string            `json:"tag,omitempty"`
	ID         string            `json:"id,omitempty"`
	Name       string            `json:"name,omitempty"`
	Text       string            `json:"text,omitempty"`
	Value      string            `json:"value,omitempty"`
	Class      string            `json:"class,omitempty"`
	Visible    bool              `json:"visible"`
	InModal    bool              `json:"inModal,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// PlatformInfo contains browser and session details
type PlatformInfo struct {
	Browser   string `json:"browser"`             // chrome, chromium
	Backend   string `json:"backend"`             // selenium, playwright, mock
	SessionID string `json:"sessionId,omitempty"` // Unique per browser session
	BaseURL   string `json:"baseUrl,omitempty"`   // Application root
	Headless  bool   `json:"headless"`
	Subject   string `json:"subject,omitempty"` // PC1 id the session is bound to
}

// Capture is returned in CommandResult.Data by steps that store an observed
// value in a flow variable.
type Capture struct {
	Variable string `json:"variable"`
	Value    string `json:"value"`
}
