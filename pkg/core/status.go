package core

import "fmt"

// StepStatus represents the execution status of a step
type StepStatus int

const (
	StatusPending   StepStatus = iota // Not yet started
	StatusRunning                     // Currently executing
	StatusPassed                      // Completed successfully
	StatusFailed                      // Assertion failed (expected behavior didn't occur)
	StatusErrored                     // Unexpected error (infrastructure, timeout, crash)
	StatusSkipped                     // Condition not met or previous step failed
	StatusWarned                      // Optional step failed (non-blocking)
)

// String returns the string representation of StepStatus
func (s StepStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusErrored:
		return "errored"
	case StatusSkipped:
		return "skipped"
	case StatusWarned:
		return "warned"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name in reports.
func (s StepStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name written by MarshalText.
func (s *StepStatus) UnmarshalText(b []byte) error {
	for st := StatusPending; st <= StatusWarned; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown step status %q", b)
}

// IsTerminal returns true if the status is a final state
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusErrored, StatusSkipped, StatusWarned:
		return true
	default:
		return false
	}
}

// IsSuccess returns true if the status indicates success (passed or warned)
func (s StepStatus) IsSuccess() bool {
	return s == StatusPassed || s == StatusWarned
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryAssertion                       // Element or button not found, text mismatch
	ErrCategoryTimeout                         // Operation timed out
	ErrCategoryConnection                      // Server unreachable, gesture rejected
	ErrCategoryApp                             // App not in foreground, wrong package
	ErrCategoryConfig                          // Invalid configuration, missing required field
	ErrCategoryInteraction                     // Action issued but expected state change not observed
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategoryApp:
		return "app"
	case ErrCategoryConfig:
		return "config"
	case ErrCategoryInteraction:
		return "interaction"
	default:
		return "unknown"
	}
}

// MarshalText encodes the category by name in reports.
func (c ErrorCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a category name written by MarshalText.
func (c *ErrorCategory) UnmarshalText(b []byte) error {
	for cat := ErrCategoryNone; cat <= ErrCategoryInteraction; cat++ {
		if cat.String() == string(b) {
			*c = cat
			return nil
		}
	}
	return fmt.Errorf("unknown error category %q", b)
}

// StatusForError maps a step error to a terminal status. Assertion and
// interaction failures mean the app did not behave as expected (failed);
// everything else points at infrastructure (errored).
func StatusForError(err error) StepStatus {
	if err == nil {
		return StatusPassed
	}
	switch CategoryOf(err) {
	case ErrCategoryAssertion, ErrCategoryInteraction:
		return StatusFailed
	default:
		return StatusErrored
	}
}
