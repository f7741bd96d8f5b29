package steps

import (
	"context"
	"os"
	"time"

	"github.com/devicelab-dev/checkin-runner/pkg/core"
	"github.com/devicelab-dev/checkin-runner/pkg/gesture"
	"github.com/devicelab-dev/checkin-runner/pkg/interact"
	"github.com/devicelab-dev/checkin-runner/pkg/locator"
)

// Options configures a step context.
type Options struct {
	Profile      locator.Profile
	ScrollBudget int
	Gestures     gesture.Config
	Interaction  interact.Config

	// AppPackage is the application expected in the foreground.
	AppPackage string
	// ResponseSettle is the pause before checking for navigation after
	// a form submission when no error toast was caught.
	ResponseSettle time.Duration
	// ToastTimeout bounds the wait for a short-lived error toast.
	ToastTimeout time.Duration
	// ScreenTimeout bounds each post-submit screen check.
	ScreenTimeout time.Duration
	// Env values substituted for ${NAME} in step arguments.
	Env map[string]string
}

// DefaultOptions returns options matching the defaults of each engine part.
func DefaultOptions() Options {
	return Options{
		Profile:        locator.DefaultProfile(),
		ScrollBudget:   locator.DefaultScrollBudget,
		Gestures:       gesture.DefaultConfig(),
		Interaction:    interact.DefaultConfig(),
		AppPackage:     "com.cucumberappiumdemo",
		ResponseSettle: 2 * time.Second,
		ToastTimeout:   time.Second,
		ScreenTimeout:  3 * time.Second,
	}
}

// Context carries the engine for one session through a scenario.
type Context struct {
	Session   core.Session
	Locator   *locator.Locator
	Search    *locator.Searcher
	Gestures  *gesture.Executor
	Checkbox  *interact.Checkbox
	Buttons   *interact.Buttons
	Responses *interact.Responses

	opts Options
}

// NewContext wires the engine around s.
func NewContext(s core.Session, opts Options) *Context {
	l := locator.New(s, opts.Profile)
	g := gesture.New(s, opts.Gestures)
	return &Context{
		Session:   s,
		Locator:   l,
		Search:    locator.NewSearcher(l, g, opts.ScrollBudget),
		Gestures:  g,
		Checkbox:  interact.NewCheckbox(l, g, opts.Interaction),
		Buttons:   interact.NewButtons(l, g, opts.Interaction),
		Responses: interact.NewResponses(l, g, opts.Interaction),
		opts:      opts,
	}
}

// Options returns the context options.
func (sc *Context) Options() Options {
	return sc.opts
}

// Expand substitutes ${NAME} from the scenario env, then the process env.
func (sc *Context) Expand(s string) string {
	return os.Expand(s, func(name string) string {
		if v, ok := sc.opts.Env[name]; ok {
			return v
		}
		return os.Getenv(name)
	})
}

// WaitFor polls the target's chain until it resolves or timeout passes.
// The chain is tried at least once. A miss is returned as an unfound Match.
func (sc *Context) WaitFor(ctx context.Context, t locator.Target, timeout time.Duration) (locator.Match, error) {
	poll := sc.opts.Interaction.PollInterval
	if poll <= 0 {
		poll = interact.DefaultConfig().PollInterval
	}
	deadline := time.Now().Add(timeout)
	for {
		m, err := sc.Locator.Locate(t)
		if err != nil || m.Found() {
			return m, err
		}
		if time.Now().Add(poll).After(deadline) {
			return m, nil
		}
		if err := sc.Gestures.Pause(ctx, poll); err != nil {
			return locator.Match{}, err
		}
	}
}

// Require is WaitFor that fails with ErrElementNotFound on a miss.
func (sc *Context) Require(ctx context.Context, t locator.Target, timeout time.Duration) (string, error) {
	m, err := sc.WaitFor(ctx, t, timeout)
	if err != nil {
		return "", err
	}
	if !m.Found() {
		return "", core.ErrElementNotFound.
			WithMessagef("%s not found within %v (tried %v)", t, timeout, t.StrategyNames()).
			WithDetails(map[string]interface{}{"target": t.String(), "attempts": m.Attempts})
	}
	return m.ElementID, nil
}
