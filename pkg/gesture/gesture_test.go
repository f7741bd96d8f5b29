package gesture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/devicelab-dev/checkin-runner/pkg/core"
	"github.com/devicelab-dev/checkin-runner/pkg/driver/mock"
)

// recorder captures pointer sequences.
type recorder struct {
	*mock.Driver
	seqs []core.PointerSequence
}

func (r *recorder) PerformActions(seq core.PointerSequence) error {
	r.seqs = append(r.seqs, seq)
	return r.Driver.PerformActions(seq)
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.TapSettle = 0
	cfg.SwipeSettle = 0
	return cfg
}

func TestTap_Sequence(t *testing.T) {
	r := &recorder{Driver: mock.New(mock.Config{})}
	e := New(r, fastConfig())

	if err := e.Tap(context.Background(), 100.6, -3); err != nil {
		t.Fatalf("Tap() error = %v", err)
	}
	if len(r.seqs) != 1 {
		t.Fatalf("expected 1 sequence, got %d", len(r.seqs))
	}
	acts := r.seqs[0].Actions
	wantTypes := []string{core.ActionPointerMove, core.ActionPointerDown, core.ActionPause, core.ActionPointerUp}
	if len(acts) != len(wantTypes) {
		t.Fatalf("actions = %+v", acts)
	}
	for i, typ := range wantTypes {
		if acts[i].Type != typ {
			t.Errorf("action %d = %q, want %q", i, acts[i].Type, typ)
		}
	}
	if acts[0].X != 101 || acts[0].Y != 0 {
		t.Errorf("coordinates = (%d, %d), want rounded and clamped (101, 0)", acts[0].X, acts[0].Y)
	}
	if acts[2].Duration != 60 {
		t.Errorf("hold = %d, want 60", acts[2].Duration)
	}
}

func TestSwipeUp_Geometry(t *testing.T) {
	r := &recorder{Driver: mock.New(mock.Config{ScreenWidth: 1000, ScreenHeight: 2000})}
	e := New(r, fastConfig())

	if err := e.SwipeUp(context.Background()); err != nil {
		t.Fatalf("SwipeUp() error = %v", err)
	}
	acts := r.seqs[0].Actions
	if len(acts) != 5 {
		t.Fatalf("actions = %+v", acts)
	}
	if acts[0].X != 500 || acts[0].Y != 1600 {
		t.Errorf("start = (%d, %d), want (500, 1600)", acts[0].X, acts[0].Y)
	}
	if acts[3].X != 500 || acts[3].Y != 400 || acts[3].Duration != 350 {
		t.Errorf("end = %+v, want (500, 400) over 350ms", acts[3])
	}
	if acts[2].Duration != 80 {
		t.Errorf("hold = %d, want 80", acts[2].Duration)
	}
	if r.Swipes != 1 {
		t.Errorf("mock swipes = %d", r.Swipes)
	}
}

func TestGestureRejected(t *testing.T) {
	d := mock.New(mock.Config{RejectGestures: true})
	e := New(d, fastConfig())

	err := e.Tap(context.Background(), 10, 10)
	if !errors.Is(err, core.ErrGestureFailed) {
		t.Fatalf("Tap() error = %v, want ErrGestureFailed", err)
	}
	if core.CategoryOf(err) != core.ErrCategoryConnection {
		t.Errorf("category = %v", core.CategoryOf(err))
	}
	if err := e.SwipeUp(context.Background()); !errors.Is(err, core.ErrGestureFailed) {
		t.Errorf("SwipeUp() error = %v, want ErrGestureFailed", err)
	}
}

func TestPause_HonoursContext(t *testing.T) {
	e := New(mock.New(mock.Config{}), fastConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := e.Pause(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Pause() error = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Pause() did not return promptly")
	}
	if err := e.Pause(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Pause() error = %v", err)
	}
}
