package core

import (
	"time"
)

// StepResult captures the outcome of executing a single scenario step
type StepResult struct {
	// Identity
	Index   int    `json:"index"`   // 0-based position in scenario
	Keyword string `json:"keyword"` // Given, When, Then, And, But
	Text    string `json:"text"`    // Step text without keyword
	Pattern string `json:"pattern,omitempty"`

	// Status
	Status   StepStatus    `json:"status"`
	Category ErrorCategory `json:"errorCategory,omitempty"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Output
	Message string                 `json:"message,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"` // Diagnostics from ExecutionError

	// Debug Artifacts
	Attachments []Attachment `json:"attachments,omitempty"`
}

// ScenarioResult captures the outcome of executing one scenario file
type ScenarioResult struct {
	// Identity
	Name     string   `json:"name"`
	FilePath string   `json:"filePath"`
	Tags     []string `json:"tags,omitempty"`

	PlatformInfo *PlatformInfo `json:"platformInfo,omitempty"`

	Status    StepStatus    `json:"status"`
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	Steps []StepResult `json:"steps"`

	// Summary (computed)
	TotalSteps   int `json:"totalSteps"`
	PassedSteps  int `json:"passedSteps"`
	FailedSteps  int `json:"failedSteps"`
	SkippedSteps int `json:"skippedSteps"`

	Error string `json:"error,omitempty"`
}

// ComputeSummary calculates step counts and the aggregate status.
func (s *ScenarioResult) ComputeSummary() {
	s.TotalSteps = len(s.Steps)
	s.PassedSteps = 0
	s.FailedSteps = 0
	s.SkippedSteps = 0

	for _, step := range s.Steps {
		switch step.Status {
		case StatusPassed, StatusWarned:
			s.PassedSteps++
		case StatusFailed, StatusErrored:
			s.FailedSteps++
		case StatusSkipped:
			s.SkippedSteps++
		}
	}

	switch {
	case s.Error != "":
		s.Status = StatusErrored
	case s.FailedSteps > 0:
		s.Status = StatusFailed
	case s.TotalSteps == 0 || s.SkippedSteps == s.TotalSteps:
		s.Status = StatusSkipped
	default:
		s.Status = StatusPassed
	}
}

// RunResult captures the outcome of one invocation over many scenario files
type RunResult struct {
	RunID     string           `json:"runId"`
	StartTime time.Time        `json:"startTime"`
	Duration  time.Duration    `json:"duration"`
	Scenarios []ScenarioResult `json:"scenarios"`

	TotalScenarios  int `json:"totalScenarios"`
	PassedScenarios int `json:"passedScenarios"`
	FailedScenarios int `json:"failedScenarios"`
}

// ComputeSummary calculates scenario counts from the Scenarios slice
func (r *RunResult) ComputeSummary() {
	r.TotalScenarios = len(r.Scenarios)
	r.PassedScenarios = 0
	r.FailedScenarios = 0
	for _, sc := range r.Scenarios {
		if sc.Status.IsSuccess() {
			r.PassedScenarios++
		} else if sc.Status == StatusFailed || sc.Status == StatusErrored {
			r.FailedScenarios++
		}
	}
}

// Success returns true if every scenario passed
func (r *RunResult) Success() bool {
	return len(r.Scenarios) > 0 && r.PassedScenarios == len(r.Scenarios)
}
