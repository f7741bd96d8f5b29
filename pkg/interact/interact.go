// Package interact performs state-confirmed interactions on top of the
// locator: checkbox toggles near a label, logical button clicks, and
// response assertions.
package interact

import (
	"time"
)

// Outcome is the result of one interaction attempt.
type Outcome int

const (
	// OutcomeUnconfirmed means every fallback ran and the state change
	// was never observed.
	OutcomeUnconfirmed Outcome = iota
	// OutcomeRetryable means the action ran but the state did not change;
	// an alternate target may still succeed.
	OutcomeRetryable
	// OutcomeConfirmed means the expected state was read back.
	OutcomeConfirmed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeRetryable:
		return "retryable"
	default:
		return "unconfirmed"
	}
}

// Config holds interaction timings and queries.
type Config struct {
	// CheckboxXPath enumerates checkbox-role elements.
	CheckboxXPath string `yaml:"checkboxXPath"`
	// ButtonClass scopes text strategies to button-like elements.
	ButtonClass string `yaml:"buttonClass"`

	ConfirmPause    time.Duration `yaml:"confirmPause"`
	RescanPause     time.Duration `yaml:"rescanPause"`
	ButtonTimeout   time.Duration `yaml:"buttonTimeout"`
	EnabledTimeout  time.Duration `yaml:"enabledTimeout"`
	ResponseTimeout time.Duration `yaml:"responseTimeout"`
	PollInterval    time.Duration `yaml:"pollInterval"`
	ButtonSettle    time.Duration `yaml:"buttonSettle"`

	// Diagnostic dump limits.
	ButtonDumpLimit   int `yaml:"buttonDumpLimit"`
	ResponseDumpLimit int `yaml:"responseDumpLimit"`
}

// DefaultConfig returns the standard interaction settings.
func DefaultConfig() Config {
	return Config{
		CheckboxXPath:     "//android.widget.CheckBox",
		ButtonClass:       "android.widget.Button",
		ConfirmPause:      120 * time.Millisecond,
		RescanPause:       150 * time.Millisecond,
		ButtonTimeout:     5 * time.Second,
		EnabledTimeout:    8 * time.Second,
		ResponseTimeout:   5 * time.Second,
		PollInterval:      200 * time.Millisecond,
		ButtonSettle:      300 * time.Millisecond,
		ButtonDumpLimit:   10,
		ResponseDumpLimit: 50,
	}
}

func (c Config) withQueries() Config {
	def := DefaultConfig()
	if c.CheckboxXPath == "" {
		c.CheckboxXPath = def.CheckboxXPath
	}
	if c.ButtonClass == "" {
		c.ButtonClass = def.ButtonClass
	}
	if c.ButtonDumpLimit <= 0 {
		c.ButtonDumpLimit = def.ButtonDumpLimit
	}
	if c.ResponseDumpLimit <= 0 {
		c.ResponseDumpLimit = def.ResponseDumpLimit
	}
	return c
}
