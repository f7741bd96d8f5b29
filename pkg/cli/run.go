package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/checkin-runner/pkg/config"
	"github.com/devicelab-dev/checkin-runner/pkg/core"
	"github.com/devicelab-dev/checkin-runner/pkg/driver/appium"
	"github.com/devicelab-dev/checkin-runner/pkg/logger"
	"github.com/devicelab-dev/checkin-runner/pkg/scenario"
	"github.com/devicelab-dev/checkin-runner/pkg/steps"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run scenario files against the app",
	ArgsUsage: "<scenario-file-or-folder>...",
	Description: `Run one or more YAML scenario files. Each file gets a fresh Appium
session. With no arguments the "scenarios" globs from config.yaml are used.

Reports are written to <output>/<run-id>/ (default output: ./reports):
  report.json                        results of every scenario and step
  assets/<scenario>/step-NNN-after.png screenshots
  checkin-runner.log                 engine log

Examples:
  checkin-runner run scenarios/
  checkin-runner run checkin.yaml -e PNR=ABC123 -e LAST_NAME=Smith
  checkin-runner run scenarios/ --include-tags smoke --output ./out`,
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Values for ${NAME} in steps (KEY=VALUE)",
		},
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only include scenarios with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Exclude scenarios with these tags",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory for reports (default: ./reports)",
		},
	},
	Action: runScenarios,
}

func runScenarios(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	paths, err := scenarioPaths(c.Args().Slice(), cfg.Scenarios)
	if err != nil {
		return err
	}

	include := c.StringSlice("include-tags")
	if len(include) == 0 {
		include = cfg.IncludeTags
	}
	exclude := c.StringSlice("exclude-tags")
	if len(exclude) == 0 {
		exclude = cfg.ExcludeTags
	}

	scenarios, err := scenario.Load(paths, include, exclude)
	if err != nil {
		return err
	}
	if len(scenarios) == 0 {
		return fmt.Errorf("no scenarios matched %v", paths)
	}

	// CLI env overrides config env
	env := make(map[string]string, len(cfg.Env))
	for k, v := range cfg.Env {
		env[k] = v
	}
	for k, v := range parseEnvVars(c.StringSlice("env")) {
		env[k] = v
	}

	runner := scenario.New(appiumSessionFactory(cfg), scenario.RunnerConfig{
		OutputDir:       resolveOutputDir(c.String("output"), cfg.OutputDir),
		Steps:           stepOptions(cfg),
		Platform:        cfg.Platform(),
		Env:             env,
		ScenarioPause:   cfg.ScenarioPause,
		Artifacts:       cfg.Artifacts,
		OnScenarioStart: onScenarioStart,
		OnStepComplete:  onStepComplete,
		OnScenarioEnd:   onScenarioEnd,
	})

	if err := os.MkdirAll(runner.Dir(), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	setupLogging(c.Bool("verbose"), cfg.Log, runner.Dir())
	defer logger.Close()

	logger.Info("=== Run %s started ===", runner.RunID())
	logger.Info("Output directory: %s", runner.Dir())
	logger.Info("Appium: %s, app: %s", cfg.Appium.URL, cfg.AppPackage())

	// Ctrl+C cancels the run; the current step stops at its next pause
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := runner.Run(ctx, scenarios)
	if result != nil {
		printSummary(result)
	}
	fmt.Fprintf(stdout, "\n  Report: %s\n", filepath.Join(runner.Dir(), "report.json"))
	if err != nil {
		return err
	}
	if !result.Success() {
		return fmt.Errorf("%d of %d scenarios did not pass", result.TotalScenarios-result.PassedScenarios, result.TotalScenarios)
	}
	return nil
}

// loadConfig reads config.yaml (explicit or from the working directory),
// the neighbouring .env file, environment overrides and global flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
		dir = "."
	)
	if path := c.String("config"); path != "" {
		dir = filepath.Dir(path)
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(dir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := config.LoadEnvFile(dir); err != nil {
		return nil, err
	}
	cfg.ApplyEnv()

	if c.IsSet("appium-url") {
		cfg.Appium.URL = c.String("appium-url")
	}
	if c.IsSet("app-package") {
		cfg.SetAppPackage(c.String("app-package"))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// scenarioPaths returns args, or the config globs expanded when no args are given.
func scenarioPaths(args, globs []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if len(globs) == 0 {
		return nil, fmt.Errorf("at least one scenario file or folder is required")
	}
	var paths []string
	for _, g := range globs {
		matches, err := filepath.Glob(g)
		if err != nil {
			return nil, fmt.Errorf("invalid scenario pattern %q: %w", g, err)
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files match scenario patterns %v", globs)
	}
	return paths, nil
}

// resolveOutputDir picks the report root: --output, then config, then ./reports.
// The run itself writes under a run-id subfolder.
func resolveOutputDir(flag, configured string) string {
	switch {
	case flag != "":
		return filepath.Clean(flag)
	case configured != "":
		return filepath.Clean(configured)
	default:
		return "./reports"
	}
}

func setupLogging(verbose bool, opts logger.Options, runDir string) {
	if verbose {
		logger.SetConsole(os.Stderr, "debug")
		return
	}
	if opts.File == "" {
		opts.File = filepath.Join(runDir, "checkin-runner.log")
	}
	if err := logger.InitWithOptions(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to initialize logger: %v\n", err)
	}
}

func stepOptions(cfg *config.Config) steps.Options {
	opts := steps.DefaultOptions()
	opts.Profile = cfg.Timeouts
	opts.ScrollBudget = cfg.ScrollBudget
	opts.Gestures = cfg.Gestures
	opts.Interaction = cfg.Interaction
	opts.AppPackage = cfg.AppPackage()
	return opts
}

// appiumSessionFactory opens one Appium session per scenario and applies
// the normal implicit wait before the first step.
func appiumSessionFactory(cfg *config.Config) scenario.SessionFactory {
	return func(ctx context.Context) (core.Session, func(), error) {
		printSetupStep(fmt.Sprintf("Connecting to Appium server: %s", cfg.Appium.URL))
		client := appium.NewClient(cfg.Appium.URL)
		client.ConnectRetries = cfg.Appium.ConnectRetries

		if err := client.Connect(ctx, cfg.CapabilitiesCopy()); err != nil {
			logger.Error("Failed to create Appium session: %v", err)
			return nil, nil, fmt.Errorf("create Appium session: %w", err)
		}
		if err := client.SetImplicitWait(cfg.Timeouts.Normal); err != nil {
			client.Disconnect()
			return nil, nil, fmt.Errorf("set implicit wait: %w", err)
		}
		if len(cfg.Appium.Settings) > 0 {
			if err := client.SetSettings(cfg.Appium.Settings); err != nil {
				logger.Warn("apply appium settings: %v", err)
			}
		}
		printSetupSuccess(fmt.Sprintf("Appium session %s created", client.SessionID()))

		cleanup := func() {
			if err := client.Disconnect(); err != nil {
				logger.Warn("delete session: %v", err)
			}
		}
		return client, cleanup, nil
	}
}

func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, e := range envs {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		}
	}
	return result
}
