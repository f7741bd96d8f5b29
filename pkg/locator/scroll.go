package locator

import (
	"context"
	"fmt"
	"time"

	"github.com/devicelab-dev/checkin-runner/pkg/core"
	"github.com/devicelab-dev/checkin-runner/pkg/gesture"
	"github.com/devicelab-dev/checkin-runner/pkg/logger"
)

// DefaultScrollBudget is the number of swipes a scroll-search may issue.
const DefaultScrollBudget = 4

// DefaultDisplayPoll is the interval between visibility checks in the final
// lookup.
const DefaultDisplayPoll = 250 * time.Millisecond

// Searcher finds targets that may be below the fold.
type Searcher struct {
	locator  *Locator
	gestures *gesture.Executor
	budget   int

	// DisplayPoll is how often the final lookup re-checks an element that
	// exists but is not displayed.
	DisplayPoll time.Duration
}

// NewSearcher creates a scroll-searcher. A non-positive budget uses
// DefaultScrollBudget.
func NewSearcher(l *Locator, g *gesture.Executor, budget int) *Searcher {
	if budget <= 0 {
		budget = DefaultScrollBudget
	}
	return &Searcher{locator: l, gestures: g, budget: budget, DisplayPoll: DefaultDisplayPoll}
}

// Budget returns the swipe budget.
func (s *Searcher) Budget() int {
	return s.budget
}

// FindByScrolling alternates a chain lookup with one upward swipe, up to the
// budget. Once the budget is spent it performs exactly one blocking lookup of
// the target's primary strategy under the final-lookup wait, polling until the
// element is displayed or the wait runs out.
func (s *Searcher) FindByScrolling(ctx context.Context, t Target) (Match, error) {
	if err := t.Validate(); err != nil {
		return Match{}, err
	}

	var attempts []Attempt
	for i := 0; i < s.budget; i++ {
		if err := ctx.Err(); err != nil {
			return Match{}, fmt.Errorf("scroll-search for %s: %w", t, err)
		}
		m, err := s.locator.Locate(t)
		if err != nil {
			return Match{}, err
		}
		if m.Found() {
			m.Swipes = i
			return m, nil
		}
		attempts = append(attempts, m.Attempts...)

		if err := s.gestures.SwipeUp(ctx); err != nil {
			return Match{}, err
		}
	}

	// Only the primary strategy is tried here; the chain has already been
	// exhausted on every screen.
	primary := t.Primary()
	var res Resolution
	timeouts := s.locator.Timeouts()
	err := timeouts.Final(func() error {
		deadline := time.Now().Add(timeouts.Profile().FinalLookup)
		for {
			res = primary.TryResolve(s.locator.Session())
			if res.Found() || res.Miss != MissNotDisplayed || !time.Now().Add(s.DisplayPoll).Before(deadline) {
				return nil
			}
			if err := s.gestures.Pause(ctx, s.DisplayPoll); err != nil {
				return err
			}
		}
	})
	if err != nil {
		return Match{}, err
	}
	if res.Found() {
		logger.Debug("resolved %s via final lookup after %d swipes", t, s.budget)
		return Match{ElementID: res.ElementID, Strategy: primary.Name(), Attempts: attempts, Swipes: s.budget}, nil
	}
	attempts = append(attempts, Attempt{Strategy: primary.Name(), Miss: res.Miss})

	return Match{}, core.ErrElementNotFound.
		WithMessagef("%s not found after %d swipes (tried %v)", t, s.budget, t.StrategyNames()).
		WithDetails(map[string]interface{}{
			"target":     t.String(),
			"swipes":     s.budget,
			"strategies": t.StrategyNames(),
			"attempts":   attempts,
		})
}
