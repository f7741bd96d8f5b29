// Package gesture builds low-level W3C pointer sequences for taps and swipes.
package gesture

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/devicelab-dev/checkin-runner/pkg/core"
	"github.com/devicelab-dev/checkin-runner/pkg/logger"
)

// Config holds gesture timings.
type Config struct {
	TapHold       time.Duration `yaml:"tapHold"`
	TapSettle     time.Duration `yaml:"tapSettle"`
	SwipeHold     time.Duration `yaml:"swipeHold"`
	SwipeDuration time.Duration `yaml:"swipeDuration"`
	SwipeSettle   time.Duration `yaml:"swipeSettle"`

	// Swipe start and end as fractions of the screen height.
	SwipeFrom float64 `yaml:"swipeFrom"`
	SwipeTo   float64 `yaml:"swipeTo"`
}

// DefaultConfig returns the timings the check-in screens were tuned with.
func DefaultConfig() Config {
	return Config{
		TapHold:       60 * time.Millisecond,
		TapSettle:     200 * time.Millisecond,
		SwipeHold:     80 * time.Millisecond,
		SwipeDuration: 350 * time.Millisecond,
		SwipeSettle:   150 * time.Millisecond,
		SwipeFrom:     0.8,
		SwipeTo:       0.2,
	}
}

// Executor performs pointer gestures on a session.
type Executor struct {
	session core.Session
	cfg     Config
}

// New creates a gesture executor. Zero fractions fall back to the defaults.
func New(s core.Session, cfg Config) *Executor {
	def := DefaultConfig()
	if cfg.SwipeFrom <= 0 || cfg.SwipeFrom > 1 {
		cfg.SwipeFrom = def.SwipeFrom
	}
	if cfg.SwipeTo <= 0 || cfg.SwipeTo > 1 {
		cfg.SwipeTo = def.SwipeTo
	}
	return &Executor{session: s, cfg: cfg}
}

// Config returns the executor timings.
func (e *Executor) Config() Config {
	return e.cfg
}

// Tap presses and releases at (x, y), then waits for the UI to settle.
func (e *Executor) Tap(ctx context.Context, x, y float64) error {
	px, py := clamp(x), clamp(y)
	seq := core.PointerSequence{
		ID: "finger1",
		Actions: []core.PointerAction{
			{Type: core.ActionPointerMove, X: px, Y: py},
			{Type: core.ActionPointerDown},
			{Type: core.ActionPause, Duration: ms(e.cfg.TapHold)},
			{Type: core.ActionPointerUp},
		},
	}
	if err := e.session.PerformActions(seq); err != nil {
		return core.ErrGestureFailed.WithMessagef("tap at (%d, %d) rejected", px, py).WithCause(err)
	}
	logger.Debug("tap at (%d, %d)", px, py)
	return e.Pause(ctx, e.cfg.TapSettle)
}

// SwipeUp drags from the lower to the upper part of the screen along the
// horizontal center, revealing content further down the list.
func (e *Executor) SwipeUp(ctx context.Context) error {
	w, h, err := e.session.WindowSize()
	if err != nil {
		return core.ErrGestureFailed.WithMessage("window size unavailable").WithCause(err)
	}

	x := clamp(float64(w) / 2)
	startY := clamp(float64(h) * e.cfg.SwipeFrom)
	endY := clamp(float64(h) * e.cfg.SwipeTo)
	seq := core.PointerSequence{
		ID: "finger1",
		Actions: []core.PointerAction{
			{Type: core.ActionPointerMove, X: x, Y: startY},
			{Type: core.ActionPointerDown},
			{Type: core.ActionPause, Duration: ms(e.cfg.SwipeHold)},
			{Type: core.ActionPointerMove, Duration: ms(e.cfg.SwipeDuration), X: x, Y: endY},
			{Type: core.ActionPointerUp},
		},
	}
	if err := e.session.PerformActions(seq); err != nil {
		return core.ErrGestureFailed.WithMessagef("swipe (%d,%d)->(%d,%d) rejected", x, startY, x, endY).WithCause(err)
	}
	logger.Debug("swipe up (%d,%d)->(%d,%d)", x, startY, x, endY)
	return e.Pause(ctx, e.cfg.SwipeSettle)
}

// Pause sleeps for d or until ctx is done.
func (e *Executor) Pause(ctx context.Context, d time.Duration) error {
	return Sleep(ctx, d)
}

// Sleep waits for d, returning ctx.Err() if the context ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("pause interrupted: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}

func clamp(v float64) int {
	r := int(math.Round(v))
	if r < 0 {
		return 0
	}
	return r
}

func ms(d time.Duration) int {
	return int(d / time.Millisecond)
}
