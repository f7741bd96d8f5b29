package locator

import (
	"fmt"
	"time"

	"github.com/devicelab-dev/checkin-runner/pkg/core"
	"github.com/devicelab-dev/checkin-runner/pkg/logger"
)

// Profile holds the implicit-wait values used while resolving elements.
type Profile struct {
	// FastProbe applies to each strategy attempt so misses fail quickly.
	FastProbe time.Duration `yaml:"fastProbe"`
	// Normal is the session's steady-state implicit wait.
	Normal time.Duration `yaml:"normal"`
	// FinalLookup applies to the blocking lookup after a scroll-search.
	FinalLookup time.Duration `yaml:"finalLookup"`
}

// DefaultProfile returns the standard timeout profile.
func DefaultProfile() Profile {
	return Profile{
		FastProbe:   300 * time.Millisecond,
		Normal:      5 * time.Second,
		FinalLookup: 4 * time.Second,
	}
}

// WithDefaults fills zero values from DefaultProfile.
func (p Profile) WithDefaults() Profile {
	def := DefaultProfile()
	if p.FastProbe <= 0 {
		p.FastProbe = def.FastProbe
	}
	if p.Normal <= 0 {
		p.Normal = def.Normal
	}
	if p.FinalLookup <= 0 {
		p.FinalLookup = def.FinalLookup
	}
	return p
}

// WithImplicitWait runs fn with the session's implicit wait set to d and
// restores the previous value on every exit path, including a panic.
func WithImplicitWait(s core.Session, d time.Duration, fn func() error) error {
	return withImplicitWait(s, d, DefaultProfile().Normal, fn)
}

func withImplicitWait(s core.Session, d, fallback time.Duration, fn func() error) (err error) {
	prior, rerr := s.ImplicitWait()
	if rerr != nil {
		logger.Debug("implicit wait unreadable, will restore %v: %v", fallback, rerr)
		prior = fallback
	}
	if serr := s.SetImplicitWait(d); serr != nil {
		return fmt.Errorf("set implicit wait %v: %w", d, serr)
	}
	defer func() {
		if rerr := s.SetImplicitWait(prior); rerr != nil && err == nil {
			err = fmt.Errorf("restore implicit wait %v: %w", prior, rerr)
		}
	}()
	return fn()
}

// Timeouts scopes implicit-wait changes on one session to a profile.
type Timeouts struct {
	session core.Session
	profile Profile
}

// NewTimeouts creates a timeout controller for s.
func NewTimeouts(s core.Session, p Profile) Timeouts {
	return Timeouts{session: s, profile: p.WithDefaults()}
}

// Profile returns the active profile.
func (t Timeouts) Profile() Profile {
	return t.profile
}

// With runs fn under implicit wait d.
func (t Timeouts) With(d time.Duration, fn func() error) error {
	return withImplicitWait(t.session, d, t.profile.Normal, fn)
}

// Probe runs fn under the fast-probe wait.
func (t Timeouts) Probe(fn func() error) error {
	return t.With(t.profile.FastProbe, fn)
}

// Normal runs fn under the normal wait.
func (t Timeouts) Normal(fn func() error) error {
	return t.With(t.profile.Normal, fn)
}

// Final runs fn under the final-lookup wait.
func (t Timeouts) Final(fn func() error) error {
	return t.With(t.profile.FinalLookup, fn)
}
