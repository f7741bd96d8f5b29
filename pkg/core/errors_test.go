package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestExecutionError_Error(t *testing.T) {
	if got := ErrElementNotFound.Error(); got != "element not found" {
		t.Errorf("Error() = %q", got)
	}

	err := ErrServerUnreachable.WithCause(errors.New("connection refused"))
	if got := err.Error(); got != "could not connect to automation server: connection refused" {
		t.Errorf("Error() with cause = %q", got)
	}
}

func TestExecutionError_CopiesLeaveSentinelIntact(t *testing.T) {
	cause := errors.New("stale element")
	err := ErrInteractionUnconfirmed.
		WithMessage("checkbox near BluChip did not confirm").
		WithCause(cause).
		WithDetails(map[string]interface{}{"labelId": "e1"}).
		WithDetails(map[string]interface{}{"dy": 12})

	if err.Code != "interaction_unconfirmed" || err.Category != ErrCategoryInteraction {
		t.Errorf("code/category = %s/%s", err.Code, err.Category)
	}
	if err.Details["labelId"] != "e1" || err.Details["dy"] != 12 {
		t.Errorf("Details = %v", err.Details)
	}
	if err.Unwrap() != cause || !errors.Is(err, cause) {
		t.Error("cause should be reachable through Unwrap")
	}

	if ErrInteractionUnconfirmed.Cause != nil ||
		ErrInteractionUnconfirmed.Details != nil ||
		ErrInteractionUnconfirmed.Message != "could not confirm interaction" {
		t.Errorf("sentinel modified: %+v", ErrInteractionUnconfirmed)
	}
}

func TestExecutionError_WithDetailsDoesNotAlias(t *testing.T) {
	base := ErrButtonNotFound.WithDetails(map[string]interface{}{"label": "Get Started"})
	derived := base.WithDetails(map[string]interface{}{"visible": []string{"Check-in"}})

	if _, ok := base.Details["visible"]; ok {
		t.Error("WithDetails() wrote into the receiver's map")
	}
	if derived.Details["label"] != "Get Started" {
		t.Error("WithDetails() dropped existing details")
	}
}

func TestSentinelCategories(t *testing.T) {
	tests := []struct {
		err      *ExecutionError
		category ErrorCategory
		code     string
	}{
		{ErrElementNotFound, ErrCategoryAssertion, "element_not_found"},
		{ErrButtonNotFound, ErrCategoryAssertion, "button_not_found"},
		{ErrElementNotEnabled, ErrCategoryAssertion, "element_not_enabled"},
		{ErrTextMismatch, ErrCategoryAssertion, "text_mismatch"},
		{ErrConditionNotMet, ErrCategoryAssertion, "condition_not_met"},
		{ErrInteractionUnconfirmed, ErrCategoryInteraction, "interaction_unconfirmed"},
		{ErrGestureFailed, ErrCategoryConnection, "gesture_failed"},
		{ErrServerUnreachable, ErrCategoryConnection, "server_unreachable"},
		{ErrAppNotRunning, ErrCategoryApp, "app_not_running"},
		{ErrInvalidConfig, ErrCategoryConfig, "invalid_config"},
		{ErrMissingRequired, ErrCategoryConfig, "missing_required"},
		{ErrUndefinedStep, ErrCategoryConfig, "undefined_step"},
	}
	for _, tt := range tests {
		if tt.err.Category != tt.category || tt.err.Code != tt.code || tt.err.Message == "" {
			t.Errorf("%s = %+v", tt.code, tt.err)
		}
	}
}

func TestExecutionError_IsMatchesByCode(t *testing.T) {
	err := ErrButtonNotFound.WithMessagef("button %q not found", "Get Started").WithDetails(map[string]interface{}{
		"visible": []string{"Check-in"},
	})
	wrapped := fmt.Errorf("step failed: %w", err)

	if !errors.Is(wrapped, ErrButtonNotFound) {
		t.Error("errors.Is() should match a derived copy by code")
	}
	if errors.Is(wrapped, ErrElementNotFound) {
		t.Error("errors.Is() should not match a different code")
	}
	if errors.Is(err, &ExecutionError{}) {
		t.Error("an empty code should match nothing")
	}
	if got := err.Error(); got != `button "Get Started" not found` {
		t.Errorf("Error() = %q", got)
	}
}

func TestCategoryOf(t *testing.T) {
	if got := CategoryOf(nil); got != ErrCategoryNone {
		t.Errorf("CategoryOf(nil) = %s, want none", got)
	}
	if got := CategoryOf(fmt.Errorf("x: %w", ErrGestureFailed)); got != ErrCategoryConnection {
		t.Errorf("CategoryOf(wrapped gesture) = %s, want connection", got)
	}
	if got := CategoryOf(errors.New("plain")); got != ErrCategoryNone {
		t.Errorf("CategoryOf(plain) = %s, want none", got)
	}
}
