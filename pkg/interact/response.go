package interact

import (
	"context"
	"strings"
	"time"

	"github.com/devicelab-dev/checkin-runner/pkg/core"
	"github.com/devicelab-dev/checkin-runner/pkg/gesture"
	"github.com/devicelab-dev/checkin-runner/pkg/locator"
	"github.com/devicelab-dev/checkin-runner/pkg/logger"
)

// ResponseMessageID is the accessibility id of the demo app's response text.
const ResponseMessageID = "ResponseMessage"

// Responses asserts on UI feedback after an action.
type Responses struct {
	locator  *locator.Locator
	gestures *gesture.Executor
	cfg      Config
}

// NewResponses creates a response checker.
func NewResponses(l *locator.Locator, g *gesture.Executor, cfg Config) *Responses {
	return &Responses{locator: l, gestures: g, cfg: cfg.withQueries()}
}

// DefaultStrategies returns the response-indicator chain used when the
// caller supplies none.
func DefaultStrategies(expected string) []locator.Strategy {
	strategies := []locator.Strategy{locator.AccessibilityID(ResponseMessageID)}
	if expected != "" {
		strategies = append(strategies, locator.TextContains(expected))
	}
	return append(strategies, locator.XPath("//android.widget.Toast"))
}

// ExpectResponseAfter waits for a response indicator and asserts its text
// contains expected. It returns the observed text. When no indicator
// resolves, the error details carry at most Config.ResponseDumpLimit
// visible texts (50 by default).
func (r *Responses) ExpectResponseAfter(ctx context.Context, expected string, strategies ...locator.Strategy) (string, error) {
	if len(strategies) == 0 {
		strategies = DefaultStrategies(expected)
	}
	target := locator.NewTarget("response message", strategies...)

	var m locator.Match
	deadline := time.Now().Add(r.cfg.ResponseTimeout)
	for {
		var err error
		m, err = r.locator.Locate(target)
		if err != nil {
			return "", err
		}
		if m.Found() || time.Now().Add(r.cfg.PollInterval).After(deadline) {
			break
		}
		if err := r.gestures.Pause(ctx, r.cfg.PollInterval); err != nil {
			return "", err
		}
	}

	if !m.Found() {
		visible := visibleLabels(r.locator, r.cfg.ResponseDumpLimit)
		logger.Warn("no response indicator for %q; visible text: %v", expected, visible)
		return "", core.ErrElementNotFound.
			WithMessagef("no response message containing %q (tried %v)", expected, target.StrategyNames()).
			WithDetails(map[string]interface{}{
				"expected":   expected,
				"strategies": target.StrategyNames(),
				"visible":    visible,
			})
	}

	text, err := r.locator.Session().ElementText(m.ElementID)
	if err != nil {
		return "", core.ErrElementNotFound.WithMessage("response message vanished before it could be read").WithCause(err)
	}
	if !strings.Contains(text, expected) {
		return text, core.ErrTextMismatch.
			WithMessagef("response %q does not contain %q", text, expected).
			WithDetails(map[string]interface{}{"expected": expected, "actual": text, "strategy": m.Strategy})
	}
	logger.Debug("response %q matched via %s", text, m.Strategy)
	return text, nil
}
