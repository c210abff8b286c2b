package executor

import (
	"errors"

	"github.com/pookie-qa/pookie-runner/pkg/core"
	"github.com/pookie-qa/pookie-runner/pkg/report"
)

// commandResultToElement converts core.CommandResult to report.Element.
func commandResultToElement(r *core.CommandResult) *report.Element {
	if r == nil || r.Element == nil {
		return nil
	}

	el := r.Element
	return &report.Element{
		Found:   true,
		Tag:     el.Tag,
		ID:      el.ID,
		Name:    el.Name,
		Text:    el.Text,
		Value:   el.Value,
		Class:   el.Class,
		InModal: el.InModal,
	}
}

// commandResultToError converts core.CommandResult error to report.Error.
// Execution errors keep their category and code.
func commandResultToError(r *core.CommandResult) *report.Error {
	if r == nil || r.Error == nil {
		return nil
	}

	errType := "unknown"
	message := r.Error.Error()
	if r.Message != "" {
		message = r.Message
	}

	out := &report.Error{Type: errType, Message: message}

	var execErr *core.ExecutionError
	if errors.As(r.Error, &execErr) {
		out.Type = execErr.Category.String()
		out.Code = execErr.Code
		out.Details = execErr.Details
	}
	return out
}
