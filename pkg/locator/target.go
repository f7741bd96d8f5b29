package locator

import (
	"github.com/devicelab-dev/checkin-runner/pkg/core"
)

// Target is a logical UI element: a human name plus an ordered chain of
// strategies, most specific first, and an optional free-text fallback.
type Target struct {
	Name       string
	Strategies []Strategy
	Fallback   string
}

// NewTarget creates a target from a name and strategies.
func NewTarget(name string, strategies ...Strategy) Target {
	return Target{Name: name, Strategies: strategies}
}

// WithFallback returns a copy of t with a free-text fallback.
func (t Target) WithFallback(text string) Target {
	t.Fallback = text
	return t
}

// Validate fails when the target has nothing to resolve with.
func (t Target) Validate() error {
	if len(t.Strategies) == 0 && t.Fallback == "" {
		return core.ErrMissingRequired.WithMessagef("target %q has no strategies and no fallback text", t.String())
	}
	return nil
}

// Chain returns the strategies in resolution order, the fallback last.
func (t Target) Chain() []Strategy {
	chain := make([]Strategy, 0, len(t.Strategies)+1)
	chain = append(chain, t.Strategies...)
	if t.Fallback != "" {
		chain = append(chain, TextContains(t.Fallback))
	}
	return chain
}

// Primary returns the most specific strategy, or nil for an invalid target.
func (t Target) Primary() Strategy {
	if len(t.Strategies) > 0 {
		return t.Strategies[0]
	}
	if t.Fallback != "" {
		return TextContains(t.Fallback)
	}
	return nil
}

// StrategyNames lists the chain for diagnostics.
func (t Target) StrategyNames() []string {
	chain := t.Chain()
	names := make([]string, len(chain))
	for i, s := range chain {
		names[i] = s.Name()
	}
	return names
}

func (t Target) String() string {
	if t.Name != "" {
		return t.Name
	}
	if p := t.Primary(); p != nil {
		return p.Name()
	}
	return "<empty target>"
}
