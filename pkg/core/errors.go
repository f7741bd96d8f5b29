package core

import (
	"fmt"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: element_not_found, button_not_found, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Diagnostic context: attempted strategies, visible elements, deltas
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
// This lets callers write errors.Is(err, core.ErrElementNotFound) against
// copies produced by WithMessage/WithDetails/WithCause.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok || t.Code == "" {
		return false
	}
	return e.Code == t.Code
}

func (e *ExecutionError) clone() *ExecutionError {
	c := *e
	return &c
}

// WithCause returns a copy of the error wrapping cause.
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	c := e.clone()
	c.Cause = cause
	return c
}

// WithMessage returns a copy of the error with msg as its message.
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	c := e.clone()
	c.Message = msg
	return c
}

// WithMessagef is WithMessage with formatting.
func (e *ExecutionError) WithMessagef(format string, args ...interface{}) *ExecutionError {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// WithDetails returns a copy of the error with details merged over the
// existing ones. The receiver's map is never modified.
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	c := e.clone()
	c.Details = make(map[string]interface{}, len(e.Details)+len(details))
	for k, v := range e.Details {
		c.Details[k] = v
	}
	for k, v := range details {
		c.Details[k] = v
	}
	return c
}

// Predefined errors
var (
	// Lookup and assertion errors
	ErrElementNotFound = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "element_not_found",
		Message:  "element not found",
	}
	ErrButtonNotFound = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "button_not_found",
		Message:  "button not found",
	}
	ErrElementNotEnabled = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "element_not_enabled",
		Message:  "element not enabled",
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

	// Interaction errors
	ErrInteractionUnconfirmed = &ExecutionError{
		Category: ErrCategoryInteraction,
		Code:     "interaction_unconfirmed",
		Message:  "could not confirm interaction",
	}

	// Connection errors
	ErrGestureFailed = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "gesture_failed",
		Message:  "pointer action sequence rejected",
	}
	ErrServerUnreachable = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "server_unreachable",
		Message:  "could not connect to automation server",
	}

	// App errors
	ErrAppNotRunning = &ExecutionError{
		Category: ErrCategoryApp,
		Code:     "app_not_running",
		Message:  "application is not in the foreground",
	}

	// Config errors
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
	ErrUndefinedStep = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "undefined_step",
		Message:  "no step definition matches",
	}
)

// CategoryOf returns the error category of err, or ErrCategoryNone when err
// carries no ExecutionError.
func CategoryOf(err error) ErrorCategory {
	if err == nil {
		return ErrCategoryNone
	}
	for e := err; e != nil; {
		if ee, ok := e.(*ExecutionError); ok {
			return ee.Category
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return ErrCategoryNone
}
