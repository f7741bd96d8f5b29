// Package cli provides the command-line interface for checkin-runner.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "Path to config.yaml (default: ./config.yaml if present)",
		EnvVars: []string{"CHECKIN_RUNNER_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "appium-url",
		Usage:   "Appium server URL (overrides config)",
		EnvVars: []string{"APPIUM_URL"},
	},
	&cli.StringFlag{
		Name:    "app-package",
		Usage:   "Application package under test (overrides config)",
		EnvVars: []string{"APP_PACKAGE"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Log to stderr at debug level",
		EnvVars: []string{"CHECKIN_RUNNER_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the command tree.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "checkin-runner",
		Usage:   "Run check-in scenarios against an app through Appium",
		Version: Version,
		Description: `checkin-runner executes YAML scenario files whose steps drive a mobile
app through an Appium server, resolving elements with fallback locator
chains, scroll-search and state-confirmed taps.

Examples:
  checkin-runner run scenarios/
  checkin-runner run checkin.yaml -e PNR=ABC123
  checkin-runner steps
  checkin-runner doctor --app app.apk`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		Commands: []*cli.Command{
			runCommand,
			stepsCommand,
			doctorCommand,
			hierarchyCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
