package scenario

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/checkin-runner/pkg/core"
	"github.com/devicelab-dev/checkin-runner/pkg/driver/mock"
	"github.com/devicelab-dev/checkin-runner/pkg/report"
	"github.com/devicelab-dev/checkin-runner/pkg/steps"
)

type harness struct {
	drivers []*mock.Driver
	closed  int
	openErr error
	typed   []string
}

func (h *harness) open(ctx context.Context) (core.Session, func(), error) {
	if h.openErr != nil {
		return nil, nil, h.openErr
	}
	d := mock.New(mock.Config{})
	h.drivers = append(h.drivers, d)
	return d, func() { h.closed++ }, nil
}

func (h *harness) registry() *steps.Registry {
	r := steps.NewRegistry()
	r.MustRegister("I pass", "always passes", func(context.Context, *steps.Context, []string) error {
		return nil
	})
	r.MustRegister("I fail", "always fails", func(context.Context, *steps.Context, []string) error {
		return core.ErrElementNotFound.WithMessage("nothing there").
			WithDetails(map[string]interface{}{"target": "ghost"})
	})
	r.MustRegister("I type {string}", "records its argument", func(_ context.Context, _ *steps.Context, args []string) error {
		h.typed = append(h.typed, args[0])
		return nil
	})
	return r
}

func newTestRunner(t *testing.T, h *harness, mutate func(*RunnerConfig)) *Runner {
	t.Helper()
	cfg := RunnerConfig{
		OutputDir: t.TempDir(),
		RunID:     "run-test",
		Registry:  h.registry(),
		Steps:     steps.DefaultOptions(),
		Artifacts: core.DefaultArtifactConfig(),
		Platform:  "android",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(h.open, cfg)
}

func scenarioOf(name string, lines ...string) *Scenario {
	sc := &Scenario{Name: name, SourcePath: name + ".yaml"}
	for i, l := range lines {
		kw, text := SplitKeyword(l)
		sc.Steps = append(sc.Steps, Step{Keyword: kw, Text: text, Line: i + 1})
	}
	return sc
}

func TestRun_AllPass(t *testing.T) {
	h := &harness{}
	r := newTestRunner(t, h, nil)

	run, err := r.Run(context.Background(), []*Scenario{
		scenarioOf("happy path", "Given I pass", "Then I pass"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !run.Success() || run.RunID != "run-test" {
		t.Fatalf("run = %+v", run)
	}

	res := run.Scenarios[0]
	if res.Status != core.StatusPassed || res.PassedSteps != 2 {
		t.Errorf("scenario = %s, passed %d", res.Status, res.PassedSteps)
	}
	if res.Steps[0].Keyword != "Given" || res.Steps[0].Pattern != "I pass" {
		t.Errorf("step = %+v", res.Steps[0])
	}
	if h.closed != 1 {
		t.Errorf("sessions closed = %d, want 1", h.closed)
	}
	if pi := res.PlatformInfo; pi == nil || pi.ScreenWidth != 1080 || pi.ScreenHeight != 2400 || pi.Platform != "android" {
		t.Errorf("platform info = %+v", res.PlatformInfo)
	}

	if got := h.drivers[0].Screenshots; got != 2 {
		t.Errorf("screenshots = %d, want 2", got)
	}
	att := res.Steps[1].Attachments
	if len(att) != 1 || att[0].ContentType != core.ContentTypePNG {
		t.Fatalf("attachments = %+v", att)
	}
	if _, err := os.Stat(filepath.Join(r.Dir(), att[0].Path)); err != nil {
		t.Errorf("screenshot file: %v", err)
	}

	saved, err := report.ReadRun(r.Dir())
	if err != nil {
		t.Fatalf("ReadRun() error = %v", err)
	}
	if saved.PassedScenarios != 1 || saved.Scenarios[0].Steps[1].Attachments[0].Path != att[0].Path {
		t.Errorf("saved report = %+v", saved)
	}
}

func TestRunScenario_SummaryOnEveryReturnPath(t *testing.T) {
	sc := scenarioOf("summary", "Given I pass", "When I fail", "Then I pass")

	ok := newTestRunner(t, &harness{}, nil).runScenario(context.Background(), sc)
	if ok.Status != core.StatusFailed || ok.TotalSteps != 3 || ok.PassedSteps != 1 ||
		ok.FailedSteps != 1 || ok.SkippedSteps != 1 {
		t.Errorf("completed scenario = %+v", ok)
	}

	down := newTestRunner(t, &harness{openErr: errors.New("down")}, nil).runScenario(context.Background(), sc)
	if down.Status != core.StatusErrored || down.TotalSteps != 3 || down.SkippedSteps != 3 {
		t.Errorf("session failure = %+v", down)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	paused := newTestRunner(t, &harness{}, func(c *RunnerConfig) {
		c.ScenarioPause = time.Hour
	}).runScenario(ctx, sc)
	if paused.Status != core.StatusErrored || paused.SkippedSteps != 3 {
		t.Errorf("interrupted pause = %+v", paused)
	}
}

func TestRun_FailureSkipsRemainingSteps(t *testing.T) {
	h := &harness{}
	r := newTestRunner(t, h, nil)

	run, _ := r.Run(context.Background(), []*Scenario{
		scenarioOf("sad path", "Given I pass", "When I fail", "Then I pass"),
	})

	res := run.Scenarios[0]
	want := []core.StepStatus{core.StatusPassed, core.StatusFailed, core.StatusSkipped}
	for i, st := range res.Steps {
		if st.Status != want[i] {
			t.Errorf("step %d status = %s, want %s", i, st.Status, want[i])
		}
	}
	if res.Status != core.StatusFailed {
		t.Errorf("scenario status = %s", res.Status)
	}

	failed := res.Steps[1]
	if failed.Category != core.ErrCategoryAssertion {
		t.Errorf("category = %s", failed.Category)
	}
	if failed.Details["target"] != "ghost" {
		t.Errorf("details = %v", failed.Details)
	}
	if len(res.Steps[2].Attachments) != 0 {
		t.Error("skipped step should not capture")
	}
	if run.Success() || run.FailedScenarios != 1 {
		t.Errorf("run summary = %+v", run)
	}
}

func TestRun_UndefinedStepErrors(t *testing.T) {
	h := &harness{}
	r := newTestRunner(t, h, nil)

	run, _ := r.Run(context.Background(), []*Scenario{scenarioOf("typo", "Given I dance")})
	st := run.Scenarios[0].Steps[0]
	if st.Status != core.StatusErrored || st.Category != core.ErrCategoryConfig {
		t.Errorf("step = %s / %s", st.Status, st.Category)
	}
}

func TestRun_SessionOpenFailure(t *testing.T) {
	h := &harness{openErr: errors.New("server down")}
	r := newTestRunner(t, h, nil)

	run, err := r.Run(context.Background(), []*Scenario{
		scenarioOf("one", "Given I pass"),
		scenarioOf("two", "Given I pass", "Then I pass"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(run.Scenarios) != 2 {
		t.Fatalf("scenarios = %d", len(run.Scenarios))
	}
	for _, res := range run.Scenarios {
		if res.Status != core.StatusErrored || res.Error != "server down" {
			t.Errorf("%s: status %s, error %q", res.Name, res.Status, res.Error)
		}
		if res.SkippedSteps != len(res.Steps) {
			t.Errorf("%s: skipped %d of %d", res.Name, res.SkippedSteps, len(res.Steps))
		}
	}
	if h.closed != 0 {
		t.Errorf("closed = %d, want 0", h.closed)
	}
}

func TestRun_EnvLayering(t *testing.T) {
	h := &harness{}
	r := newTestRunner(t, h, func(c *RunnerConfig) {
		c.Env = map[string]string{"A": "1", "B": "1"}
	})

	sc := scenarioOf("env", `When I type "${A}${B}"`)
	sc.Env = map[string]string{"B": "2"}
	if _, err := r.Run(context.Background(), []*Scenario{sc}); err != nil {
		t.Fatal(err)
	}
	if len(h.typed) != 1 || h.typed[0] != "12" {
		t.Errorf("typed = %v, want [12]", h.typed)
	}
}

func TestRun_CaptureOnFailureOnly(t *testing.T) {
	h := &harness{}
	r := newTestRunner(t, h, func(c *RunnerConfig) {
		c.Artifacts.CaptureOnSuccess = false
	})

	run, _ := r.Run(context.Background(), []*Scenario{scenarioOf("x", "Given I pass", "When I fail")})
	if h.drivers[0].Screenshots != 1 {
		t.Errorf("screenshots = %d, want 1", h.drivers[0].Screenshots)
	}
	att := run.Scenarios[0].Steps[1].Attachments
	if len(att) != 2 || att[0].Name != core.AttachmentScreenshot {
		t.Fatalf("failed step attachments = %+v", att)
	}
	if att[1].Name != core.AttachmentHierarchy || h.drivers[0].Sources != 1 {
		t.Errorf("hierarchy attachment = %+v, sources = %d", att[1], h.drivers[0].Sources)
	}
	if _, err := os.Stat(filepath.Join(r.Dir(), att[1].Path)); err != nil {
		t.Errorf("hierarchy file: %v", err)
	}
}

func TestRun_HierarchyDisabled(t *testing.T) {
	h := &harness{}
	r := newTestRunner(t, h, func(c *RunnerConfig) {
		c.Artifacts.Hierarchy = false
	})

	run, _ := r.Run(context.Background(), []*Scenario{scenarioOf("x", "When I fail")})
	if h.drivers[0].Sources != 0 || len(run.Scenarios[0].Steps[0].Attachments) != 1 {
		t.Errorf("sources = %d, attachments = %+v", h.drivers[0].Sources, run.Scenarios[0].Steps[0].Attachments)
	}
}

func TestRun_Cancelled(t *testing.T) {
	h := &harness{}
	r := newTestRunner(t, h, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	run, _ := r.Run(ctx, []*Scenario{scenarioOf("x", "Given I pass")})

	if len(h.drivers) != 0 {
		t.Errorf("sessions opened = %d, want 0", len(h.drivers))
	}
	if run.Scenarios[0].Status != core.StatusSkipped {
		t.Errorf("status = %s, want skipped", run.Scenarios[0].Status)
	}
}

func TestRun_ScenarioPauseInterrupted(t *testing.T) {
	h := &harness{}
	r := newTestRunner(t, h, func(c *RunnerConfig) {
		c.ScenarioPause = time.Hour
	})

	ctx, cancel := context.WithCancel(context.Background())
	r.config.OnScenarioStart = func(int, int, *Scenario) {
		time.AfterFunc(10*time.Millisecond, cancel)
	}
	run, _ := r.Run(ctx, []*Scenario{scenarioOf("x", "Given I pass")})

	res := run.Scenarios[0]
	if res.Status != core.StatusErrored || res.Steps[0].Status != core.StatusSkipped {
		t.Errorf("scenario = %s, step = %s", res.Status, res.Steps[0].Status)
	}
	if h.closed != 1 {
		t.Errorf("closed = %d, want 1", h.closed)
	}
}

func TestRun_Callbacks(t *testing.T) {
	h := &harness{}
	var started, ended, stepCount int
	r := newTestRunner(t, h, func(c *RunnerConfig) {
		c.OnScenarioStart = func(idx, total int, _ *Scenario) {
			started++
			if total != 2 {
				t.Errorf("total = %d", total)
			}
		}
		c.OnStepComplete = func(*Scenario, core.StepResult) { stepCount++ }
		c.OnScenarioEnd = func(*Scenario, core.ScenarioResult) { ended++ }
	})

	r.Run(context.Background(), []*Scenario{
		scenarioOf("a", "Given I pass"),
		scenarioOf("b", "Given I fail", "Then I pass"),
	})
	if started != 2 || ended != 2 || stepCount != 3 {
		t.Errorf("callbacks: start %d, end %d, steps %d", started, ended, stepCount)
	}
}

func TestNew_GeneratesRunID(t *testing.T) {
	out := t.TempDir()
	r := New((&harness{}).open, RunnerConfig{OutputDir: out})
	if _, err := uuid.Parse(r.RunID()); err != nil {
		t.Errorf("RunID %q is not a uuid: %v", r.RunID(), err)
	}
	if r.Dir() != filepath.Join(out, r.RunID()) {
		t.Errorf("Dir() = %q", r.Dir())
	}
}

func TestRun_BuiltinLifecycleSteps(t *testing.T) {
	h := &harness{}
	opts := steps.DefaultOptions()
	r := New(h.open, RunnerConfig{
		OutputDir: t.TempDir(),
		Steps:     opts,
	})

	run, err := r.Run(context.Background(), []*Scenario{
		scenarioOf("lifecycle",
			"When I put the app in the background for 2 seconds",
			"And I restart the app"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !run.Success() {
		t.Fatalf("run failed: %+v", run.Scenarios[0].Steps)
	}
	d := h.drivers[0]
	if len(d.Backgrounded) != 1 || d.Backgrounded[0] != 2*time.Second {
		t.Errorf("backgrounded = %v", d.Backgrounded)
	}
	if d.Terminations != 1 || d.Activations != 1 {
		t.Errorf("terminations %d, activations %d", d.Terminations, d.Activations)
	}
	if d.Screenshots != 0 {
		t.Errorf("screenshots = %d with zero artifact config", d.Screenshots)
	}
}
