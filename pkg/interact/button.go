package interact

import (
	"context"
	"fmt"
	"time"

	"github.com/devicelab-dev/checkin-runner/pkg/core"
	"github.com/devicelab-dev/checkin-runner/pkg/gesture"
	"github.com/devicelab-dev/checkin-runner/pkg/locator"
	"github.com/devicelab-dev/checkin-runner/pkg/logger"
)

// Buttons clicks controls identified by a human label.
type Buttons struct {
	locator  *locator.Locator
	gestures *gesture.Executor
	cfg      Config
}

// NewButtons creates a button clicker.
func NewButtons(l *locator.Locator, g *gesture.Executor, cfg Config) *Buttons {
	return &Buttons{locator: l, gestures: g, cfg: cfg.withQueries()}
}

// Target builds the button strategy chain for label: accessibility id,
// exact button text, button text-contains, clickable text-contains, a
// generic attribute match, then any caller-supplied structural fallbacks.
func (b *Buttons) Target(label string, extra ...locator.Strategy) locator.Target {
	strategies := []locator.Strategy{
		locator.AccessibilityID(label),
		locator.ClassText(b.cfg.ButtonClass, label),
		locator.ClassTextContains(b.cfg.ButtonClass, label),
		locator.ClickableTextContains(label),
		locator.AttributeXPath(label),
	}
	strategies = append(strategies, extra...)
	return locator.NewTarget(label+" button", strategies...)
}

// ClickLogicalButton resolves a visible button for label, waits for it to
// be enabled, clicks it and waits for the UI to settle.
func (b *Buttons) ClickLogicalButton(ctx context.Context, label string, extra ...locator.Strategy) error {
	if label == "" {
		return core.ErrMissingRequired.WithMessage("button label is empty")
	}
	target := b.Target(label, extra...)

	m, err := b.poll(ctx, target)
	if err != nil {
		return err
	}
	if !m.Found() {
		visible := visibleLabels(b.locator, b.cfg.ButtonDumpLimit)
		logger.Warn("button %q not found; visible elements: %v", label, visible)
		return core.ErrButtonNotFound.
			WithMessagef("button %q not found (tried %v)", label, target.StrategyNames()).
			WithDetails(map[string]interface{}{
				"button":     label,
				"strategies": target.StrategyNames(),
				"attempts":   m.Attempts,
				"visible":    visible,
			})
	}

	if err := b.WaitEnabled(ctx, m.ElementID, b.cfg.EnabledTimeout); err != nil {
		return core.ErrElementNotEnabled.
			WithMessagef("button %q not enabled within %v", label, b.cfg.EnabledTimeout).WithCause(err)
	}
	if err := b.locator.Session().ClickElement(m.ElementID); err != nil {
		return fmt.Errorf("click button %q: %w", label, err)
	}
	logger.Info("clicked %q via %s", label, m.Strategy)
	return b.gestures.Pause(ctx, b.cfg.ButtonSettle)
}

// poll walks the chain until it resolves or the button timeout passes. The
// chain is always tried at least once.
func (b *Buttons) poll(ctx context.Context, target locator.Target) (locator.Match, error) {
	deadline := time.Now().Add(b.cfg.ButtonTimeout)
	for {
		m, err := b.locator.Locate(target)
		if err != nil || m.Found() {
			return m, err
		}
		if time.Now().Add(b.cfg.PollInterval).After(deadline) {
			return m, nil
		}
		if err := b.gestures.Pause(ctx, b.cfg.PollInterval); err != nil {
			return locator.Match{}, err
		}
	}
}

// WaitEnabled polls until the element reports enabled or timeout passes.
func (b *Buttons) WaitEnabled(ctx context.Context, id string, timeout time.Duration) error {
	s := b.locator.Session()
	deadline := time.Now().Add(timeout)
	for {
		enabled, err := s.IsElementEnabled(id)
		if err == nil && enabled {
			return nil
		}
		if time.Now().Add(b.cfg.PollInterval).After(deadline) {
			if err != nil {
				return err
			}
			return fmt.Errorf("element %s still disabled", id)
		}
		if err := b.gestures.Pause(ctx, b.cfg.PollInterval); err != nil {
			return err
		}
	}
}
