// Package report writes run artifacts: per-step screenshots and report.json.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/devicelab-dev/checkin-runner/pkg/core"
)

// ReportFile is the name of the run summary written at the run root.
const ReportFile = "report.json"

// Writer lays out artifacts of one run under <root>/<runID>.
type Writer struct {
	dir string
}

// NewWriter creates a writer for runID under root.
func NewWriter(root, runID string) *Writer {
	return &Writer{dir: filepath.Join(root, runID)}
}

// Dir returns the run directory.
func (w *Writer) Dir() string {
	return w.dir
}

// SaveScreenshot saves a step screenshot and returns its path relative to Dir.
func (w *Writer) SaveScreenshot(scenario string, stepIndex int, timing string, data []byte) (string, error) {
	return w.saveAsset(scenario, fmt.Sprintf("step-%03d-%s.png", stepIndex, timing), data)
}

// SaveHierarchy saves the page source captured for a step.
func (w *Writer) SaveHierarchy(scenario string, stepIndex int, source string) (string, error) {
	return w.saveAsset(scenario, fmt.Sprintf("step-%03d-hierarchy.xml", stepIndex), []byte(source))
}

func (w *Writer) saveAsset(scenario, filename string, data []byte) (string, error) {
	assets := filepath.Join("assets", Slug(scenario))
	if err := ensureDir(filepath.Join(w.dir, assets)); err != nil {
		return "", fmt.Errorf("create assets dir: %w", err)
	}

	rel := filepath.Join(assets, filename)
	if err := os.WriteFile(filepath.Join(w.dir, rel), data, 0o644); err != nil {
		return "", err
	}
	return rel, nil
}

// WriteRun writes report.json for the run.
func (w *Writer) WriteRun(run *core.RunResult) error {
	if err := ensureDir(w.dir); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}
	if err := atomicWriteJSON(filepath.Join(w.dir, ReportFile), run); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// ReadRun loads a report.json written by WriteRun from a run directory.
func ReadRun(dir string) (*core.RunResult, error) {
	data, err := os.ReadFile(filepath.Join(dir, ReportFile)) //#nosec G304 -- report dir is user-provided
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var run core.RunResult
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &run, nil
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a scenario name into a file-system safe directory name.
func Slug(name string) string {
	s := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if s == "" {
		return "scenario"
	}
	return s
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// atomicWriteJSON writes v to path via a temp file and rename so readers
// never observe a partial report.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.json")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
