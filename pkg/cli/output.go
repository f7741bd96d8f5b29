package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/devicelab-dev/checkin-runner/pkg/core"
	"github.com/devicelab-dev/checkin-runner/pkg/scenario"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Slow step threshold in milliseconds
const slowThresholdMs = 5000

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

// stdout receives progress and summary output.
var stdout io.Writer = os.Stdout

func init() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

func printSetupStep(msg string) {
	fmt.Fprintf(stdout, "  %s⏳%s %s\n", color(colorCyan), color(colorReset), msg)
}

func printSetupSuccess(msg string) {
	fmt.Fprintf(stdout, "  %s✓%s %s\n", color(colorGreen), color(colorReset), msg)
}

// Live progress callbacks

func onScenarioStart(idx, total int, sc *scenario.Scenario) {
	fmt.Fprintf(stdout, "\n  %s[%d/%d]%s %s%s%s (%s)\n",
		color(colorCyan), idx+1, total, color(colorReset),
		color(colorBold), sc.Name, color(colorReset), sc.SourcePath)
	fmt.Fprintln(stdout, strings.Repeat("─", 60))
}

func onStepComplete(_ *scenario.Scenario, st core.StepResult) {
	desc := strings.TrimSpace(st.Keyword + " " + st.Text)
	durationMs := st.Duration.Milliseconds()
	durStr := formatDuration(durationMs)

	switch {
	case st.Status == core.StatusSkipped:
		fmt.Fprintf(stdout, "    %s- %s%s\n", color(colorGray), desc, color(colorReset))
	case st.Status.IsSuccess():
		symbol := "✓"
		symbolColor := color(colorGreen)
		durColor := ""
		if durationMs >= slowThresholdMs {
			durColor = color(colorYellow)
			symbol = "⚠"
			symbolColor = color(colorYellow)
		}
		fmt.Fprintf(stdout, "    %s%s%s %s %s(%s)%s\n",
			symbolColor, symbol, color(colorReset), desc, durColor, durStr, color(colorReset))
	default:
		fmt.Fprintf(stdout, "    %s✗%s %s (%s)\n", color(colorRed), color(colorReset), desc, durStr)
		if st.Error != "" {
			fmt.Fprintf(stdout, "      %s╰─%s %s\n", color(colorGray), color(colorReset), st.Error)
		}
	}
}

func onScenarioEnd(sc *scenario.Scenario, res core.ScenarioResult) {
	if res.Error != "" {
		fmt.Fprintf(stdout, "    %s✗%s %s\n", color(colorRed), color(colorReset), res.Error)
	}
}

func printSummary(run *core.RunResult) {
	totalSteps, passedSteps, failedSteps, skippedSteps := 0, 0, 0, 0
	for _, sr := range run.Scenarios {
		totalSteps += sr.TotalSteps
		passedSteps += sr.PassedSteps
		failedSteps += sr.FailedSteps
		skippedSteps += sr.SkippedSteps
	}
	runMs := run.Duration.Milliseconds()

	fmt.Fprintln(stdout)
	if passedSteps > 0 {
		fmt.Fprintf(stdout, "  %s%d steps passing%s (%s)\n", color(colorGreen), passedSteps, color(colorReset), formatDuration(runMs))
	}
	if failedSteps > 0 {
		fmt.Fprintf(stdout, "  %s%d steps failing%s\n", color(colorRed), failedSteps, color(colorReset))
	}
	if skippedSteps > 0 {
		fmt.Fprintf(stdout, "  %s%d steps skipped%s\n", color(colorCyan), skippedSteps, color(colorReset))
	}
	fmt.Fprintln(stdout)

	tableWidth := 92
	fmt.Fprintln(stdout, strings.Repeat("═", tableWidth))
	fmt.Fprintf(stdout, "  %-42s %6s %7s %6s %6s %6s %10s\n", "Scenario", "Status", "Steps", "Pass", "Fail", "Skip", "Duration")
	fmt.Fprintln(stdout, strings.Repeat("─", tableWidth))

	for _, sr := range run.Scenarios {
		status, statusColor := statusLabel(sr.Status)

		name := sr.Name
		if len(name) > 42 {
			name = name[:39] + "..."
		}

		fmt.Fprintf(stdout, "  %-42s %s%6s%s %7d %6d %6d %6d %10s\n",
			name, statusColor, status, color(colorReset),
			sr.TotalSteps, sr.PassedSteps, sr.FailedSteps, sr.SkippedSteps,
			formatDuration(sr.Duration.Milliseconds()))
	}

	fmt.Fprintln(stdout, strings.Repeat("─", tableWidth))
	statusStr := fmt.Sprintf("%d/%d", run.PassedScenarios, run.TotalScenarios)
	statusColor := color(colorGreen)
	if run.FailedScenarios > 0 {
		statusColor = color(colorRed)
	}
	fmt.Fprintf(stdout, "  %s%-42s%s %s%6s%s %7d %6d %6d %6d %10s\n",
		color(colorBold), "TOTAL", color(colorReset),
		statusColor, statusStr, color(colorReset),
		totalSteps, passedSteps, failedSteps, skippedSteps,
		formatDuration(runMs))
	fmt.Fprintln(stdout, strings.Repeat("═", tableWidth))
}

func statusLabel(s core.StepStatus) (string, string) {
	switch s {
	case core.StatusFailed:
		return "✗ FAIL", color(colorRed)
	case core.StatusErrored:
		return "✗ ERR", color(colorRed)
	case core.StatusSkipped:
		return "- SKIP", color(colorCyan)
	default:
		return "✓ PASS", color(colorGreen)
	}
}

// formatDuration formats milliseconds to a human-readable string.
// Shows milliseconds for values < 1s, seconds otherwise.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}
