package core

import (
	"fmt"
	"time"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: not_found, value_not_set, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an ExecutionError with the same code.
// This lets callers match a constructed error against the predefined ones.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{}, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors. Match with errors.Is.
var (
	// ErrNotFound: an expected element or condition did not appear in time.
	ErrNotFound = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "not_found",
		Message:  "element or condition not found",
	}
	// ErrOptionNotFound: a dropdown had neither the label nor a usable value.
	ErrOptionNotFound = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "option_not_found",
		Message:  "dropdown option not found",
	}
	// ErrValueNotSet: every strategy for setting an input failed to converge.
	ErrValueNotSet = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "value_not_set",
		Message:  "input value could not be set",
	}
	// ErrStaleReference: a handle was used after its DOM was replaced.
	ErrStaleReference = &ExecutionError{
		Category: ErrCategoryStale,
		Code:     "stale_reference",
		Message:  "element reference is stale",
	}

	ErrTextMismatch = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "text_mismatch",
		Message:  "text does not match expected value",
	}
	ErrConditionNotMet = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "condition_not_met",
		Message:  "condition was not met",
	}

	ErrSessionUnavailable = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "session_unavailable",
		Message:  "could not start a browser session",
	}

	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
	ErrMissingRequired = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "missing_required",
		Message:  "missing required field",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// NotFound reports that description did not appear within timeout.
func NotFound(description string, timeout time.Duration) *ExecutionError {
	return ErrNotFound.
		WithMessage(fmt.Sprintf("'%s' was not found within %s", description, timeout)).
		WithDetails(map[string]interface{}{
			"description": description,
			"timeout":     timeout.String(),
		})
}

// OptionNotFound reports a dropdown that has no option with the given text.
func OptionNotFound(dropdownID, text string) *ExecutionError {
	return ErrOptionNotFound.
		WithMessage(fmt.Sprintf("Option '%s' was not found in dropdown '%s'.", text, dropdownID)).
		WithDetails(map[string]interface{}{
			"dropdown": dropdownID,
			"text":     text,
		})
}

// ValueNotSet reports an input that never converged to value.
func ValueNotSet(field, value, observed string) *ExecutionError {
	return ErrValueNotSet.
		WithMessage(fmt.Sprintf("Unable to set '%s' to '%s'. Last observed value '%s'.", field, value, observed)).
		WithDetails(map[string]interface{}{
			"field":    field,
			"value":    value,
			"observed": observed,
		})
}

// StaleReference wraps a driver error for a handle that no longer exists.
func StaleReference(description string, cause error) *ExecutionError {
	return ErrStaleReference.
		WithMessage(fmt.Sprintf("reference to '%s' is stale", description)).
		WithCause(cause)
}
