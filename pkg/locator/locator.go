// Package locator resolves logical UI targets to live elements: a chain of
// query strategies tried under a short implicit wait, and a bounded
// scroll-search around it.
package locator

import (
	"github.com/devicelab-dev/checkin-runner/pkg/core"
	"github.com/devicelab-dev/checkin-runner/pkg/logger"
)

// Attempt records one strategy that did not resolve.
type Attempt struct {
	Strategy string `json:"strategy"`
	Miss     string `json:"miss"`
}

// Match is the result of resolving a target.
type Match struct {
	ElementID string
	Strategy  string
	Attempts  []Attempt
	Swipes    int
}

// Found reports whether an element was resolved.
func (m Match) Found() bool {
	return m.ElementID != ""
}

// Locator walks strategy chains on one session.
type Locator struct {
	session  core.Session
	timeouts Timeouts
}

// New creates a locator for s.
func New(s core.Session, p Profile) *Locator {
	return &Locator{session: s, timeouts: NewTimeouts(s, p)}
}

// Session returns the underlying session.
func (l *Locator) Session() core.Session {
	return l.session
}

// Timeouts returns the locator's timeout controller.
func (l *Locator) Timeouts() Timeouts {
	return l.timeouts
}

// Locate tries each strategy of t in order under the fast-probe wait and
// returns the first one that resolves to a displayed element. Exhausting the
// chain is not an error; the returned error reports an invalid target or a
// failure to scope the implicit wait.
func (l *Locator) Locate(t Target) (Match, error) {
	if err := t.Validate(); err != nil {
		return Match{}, err
	}

	var m Match
	err := l.timeouts.Probe(func() error {
		for _, st := range t.Chain() {
			res := st.TryResolve(l.session)
			if res.Found() {
				m.ElementID = res.ElementID
				m.Strategy = st.Name()
				return nil
			}
			m.Attempts = append(m.Attempts, Attempt{Strategy: st.Name(), Miss: res.Miss})
		}
		return nil
	})
	if err != nil {
		return Match{}, err
	}

	if m.Found() {
		logger.Debug("resolved %s via %s", t, m.Strategy)
	} else {
		logger.Debug("%s not resolved (%d strategies)", t, len(m.Attempts))
	}
	return m, nil
}
