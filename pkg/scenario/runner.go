package scenario

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/devicelab-dev/checkin-runner/pkg/core"
	"github.com/devicelab-dev/checkin-runner/pkg/gesture"
	"github.com/devicelab-dev/checkin-runner/pkg/logger"
	"github.com/devicelab-dev/checkin-runner/pkg/report"
	"github.com/devicelab-dev/checkin-runner/pkg/steps"
)

// SessionFactory opens a session for one scenario. The returned func
// closes it and is always called when err is nil.
type SessionFactory func(ctx context.Context) (core.Session, func(), error)

// RunnerConfig configures the scenario runner.
type RunnerConfig struct {
	OutputDir string // Report root; the run writes under <OutputDir>/<RunID>
	RunID     string // Generated when empty

	Registry *steps.Registry // Step definitions, steps.Default() when nil
	Steps    steps.Options
	Env      map[string]string // Run-level values, overridden by scenario env
	Platform string            // Reported in PlatformInfo: android, ios

	// ScenarioPause lets the app settle before the first step.
	ScenarioPause time.Duration
	Artifacts     core.ArtifactConfig

	// Live progress callbacks
	OnScenarioStart func(idx, total int, sc *Scenario)
	OnStepComplete  func(sc *Scenario, step core.StepResult)
	OnScenarioEnd   func(sc *Scenario, result core.ScenarioResult)
}

// Runner executes scenarios sequentially.
type Runner struct {
	config   RunnerConfig
	open     SessionFactory
	registry *steps.Registry
	writer   *report.Writer
}

// New creates a Runner.
func New(open SessionFactory, cfg RunnerConfig) *Runner {
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = steps.Default()
	}
	return &Runner{
		config:   cfg,
		open:     open,
		registry: reg,
		writer:   report.NewWriter(cfg.OutputDir, cfg.RunID),
	}
}

// log returns an entry on the current global logger.
func (r *Runner) log() *logrus.Entry {
	return logger.WithRun(r.config.RunID)
}

// RunID returns the run identifier.
func (r *Runner) RunID() string {
	return r.config.RunID
}

// Dir returns the directory holding this run's report and screenshots.
func (r *Runner) Dir() string {
	return r.writer.Dir()
}

// Run executes all scenarios and writes report.json. Scenario failures are
// reported in the result; the error covers only report writing.
func (r *Runner) Run(ctx context.Context, scenarios []*Scenario) (*core.RunResult, error) {
	run := &core.RunResult{
		RunID:     r.config.RunID,
		StartTime: time.Now(),
	}
	r.log().Infof("run started: %d scenario(s)", len(scenarios))

	for i, sc := range scenarios {
		if r.config.OnScenarioStart != nil {
			r.config.OnScenarioStart(i, len(scenarios), sc)
		}

		var res core.ScenarioResult
		if ctx.Err() != nil {
			res = skipped(sc, "run cancelled")
		} else {
			res = r.runScenario(ctx, sc)
		}
		run.Scenarios = append(run.Scenarios, res)

		if r.config.OnScenarioEnd != nil {
			r.config.OnScenarioEnd(sc, res)
		}
	}

	run.Duration = time.Since(run.StartTime)
	run.ComputeSummary()
	r.log().Infof("run finished: %d/%d passed in %v", run.PassedScenarios, run.TotalScenarios, run.Duration)

	if err := r.writer.WriteRun(run); err != nil {
		return run, err
	}
	return run, nil
}

// runScenario runs one scenario on a fresh session. The summary is computed
// in a defer, so the result is named.
func (r *Runner) runScenario(ctx context.Context, sc *Scenario) (res core.ScenarioResult) {
	log := r.log().WithField("scenario", sc.Name)
	res = core.ScenarioResult{
		Name:      sc.Name,
		FilePath:  sc.SourcePath,
		Tags:      sc.Tags,
		StartTime: time.Now(),
	}
	defer func() {
		res.Duration = time.Since(res.StartTime)
		res.ComputeSummary()
		log.Infof("scenario %s in %v", res.Status, res.Duration)
	}()

	session, closeSession, err := r.open(ctx)
	if err != nil {
		log.Errorf("open session: %v", err)
		res.Error = err.Error()
		res.Steps = skippedSteps(sc)
		return res
	}
	defer closeSession()
	res.PlatformInfo = r.platformInfo(session)

	if err := gesture.Sleep(ctx, r.config.ScenarioPause); err != nil {
		res.Error = err.Error()
		res.Steps = skippedSteps(sc)
		return res
	}

	opts := r.config.Steps
	opts.Env = mergeEnv(r.config.Env, sc.Env)
	sctx := steps.NewContext(session, opts)

	failed := false
	for i, st := range sc.Steps {
		var sr core.StepResult
		if failed || ctx.Err() != nil {
			sr = skippedStep(i, st)
		} else {
			sr = r.runStep(ctx, sctx, sc, i, st)
			failed = !sr.Status.IsSuccess()
		}
		res.Steps = append(res.Steps, sr)

		if r.config.OnStepComplete != nil {
			r.config.OnStepComplete(sc, sr)
		}
	}
	return res
}

func (r *Runner) runStep(ctx context.Context, sctx *steps.Context, sc *Scenario, idx int, st Step) core.StepResult {
	sr := core.StepResult{
		Index:     idx,
		Keyword:   st.Keyword,
		Text:      st.Text,
		StartTime: time.Now(),
	}

	def, err := r.registry.Run(ctx, sctx, st.Text)
	sr.Duration = time.Since(sr.StartTime)
	sr.Status = core.StatusForError(err)
	if def != nil {
		sr.Pattern = def.Pattern
	}
	if err != nil {
		sr.Error = err.Error()
		sr.Category = core.CategoryOf(err)
		var execErr *core.ExecutionError
		if errors.As(err, &execErr) {
			sr.Details = execErr.Details
		}
		r.log().WithField("scenario", sc.Name).Warnf("step %d %q: %v", idx, st.Text, err)
	} else {
		r.log().WithField("scenario", sc.Name).Debugf("step %d %q passed in %v", idx, st.Text, sr.Duration)
	}

	if r.config.Artifacts.ShouldCapture(sr.Status) {
		if a, ok := r.capture(sctx.Session, sc, idx); ok {
			sr.Attachments = append(sr.Attachments, a)
		}
	}
	if r.config.Artifacts.ShouldCaptureHierarchy(sr.Status) {
		if a, ok := r.captureHierarchy(sctx.Session, sc, idx); ok {
			sr.Attachments = append(sr.Attachments, a)
		}
	}
	return sr
}

// platformInfo describes the device under test. A failed size read only logs.
func (r *Runner) platformInfo(s core.Session) *core.PlatformInfo {
	info := &core.PlatformInfo{Platform: r.config.Platform, AppID: r.config.Steps.AppPackage}
	w, h, err := s.WindowSize()
	if err != nil {
		r.log().Debugf("window size: %v", err)
		return info
	}
	info.ScreenWidth, info.ScreenHeight = w, h
	return info
}

// capture saves a screenshot of the current screen. Failures only log.
func (r *Runner) capture(s core.Session, sc *Scenario, idx int) (core.Attachment, bool) {
	data, err := s.Screenshot()
	if err != nil {
		r.log().Warnf("screenshot after step %d: %v", idx, err)
		return core.Attachment{}, false
	}
	rel, err := r.writer.SaveScreenshot(sc.Name, idx, "after", data)
	if err != nil {
		r.log().Warnf("save screenshot: %v", err)
		return core.Attachment{}, false
	}
	return core.NewScreenshotAttachment(rel, nil), true
}

// captureHierarchy saves the page source when the session can provide it.
func (r *Runner) captureHierarchy(s core.Session, sc *Scenario, idx int) (core.Attachment, bool) {
	sp, ok := s.(core.SourceProvider)
	if !ok {
		return core.Attachment{}, false
	}
	src, err := sp.Source()
	if err != nil {
		r.log().Warnf("page source after step %d: %v", idx, err)
		return core.Attachment{}, false
	}
	rel, err := r.writer.SaveHierarchy(sc.Name, idx, src)
	if err != nil {
		r.log().Warnf("save page source: %v", err)
		return core.Attachment{}, false
	}
	return core.NewHierarchyAttachment(rel), true
}

func skipped(sc *Scenario, reason string) core.ScenarioResult {
	res := core.ScenarioResult{
		Name:      sc.Name,
		FilePath:  sc.SourcePath,
		Tags:      sc.Tags,
		StartTime: time.Now(),
		Steps:     skippedSteps(sc),
	}
	res.ComputeSummary()
	for i := range res.Steps {
		res.Steps[i].Message = reason
	}
	return res
}

func skippedSteps(sc *Scenario) []core.StepResult {
	out := make([]core.StepResult, len(sc.Steps))
	for i, st := range sc.Steps {
		out[i] = skippedStep(i, st)
	}
	return out
}

func skippedStep(idx int, st Step) core.StepResult {
	return core.StepResult{
		Index:   idx,
		Keyword: st.Keyword,
		Text:    st.Text,
		Status:  core.StatusSkipped,
	}
}

func mergeEnv(base, override map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
