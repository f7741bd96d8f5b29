package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInit_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	if err := Init(path); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer Close()

	Info("probe %s", "accessibility id")
	Debug("swipe %d", 2)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), "probe accessibility id") {
		t.Errorf("log file missing info line: %s", data)
	}
	if !strings.Contains(string(data), "swipe 2") {
		t.Errorf("log file missing debug line: %s", data)
	}
}

func TestInit_BadPath(t *testing.T) {
	err := Init(filepath.Join(t.TempDir(), "missing", "dir", "run.log"))
	if err == nil {
		t.Fatal("expected error for unwritable path")
	}
}

func TestSetConsole_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	SetConsole(&buf, "warn")
	defer Close()

	Info("hidden")
	Warn("shown %d", 1)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown 1") {
		t.Errorf("warn line missing: %s", out)
	}
}

func TestWithRun_AddsField(t *testing.T) {
	var buf bytes.Buffer
	SetConsole(&buf, "info")
	defer Close()

	WithRun("run-123").Info("started")
	if !strings.Contains(buf.String(), "run_id=run-123") {
		t.Errorf("expected run_id field, got: %s", buf.String())
	}
}

func TestClose_DiscardsOutput(t *testing.T) {
	Close()
	// Logging after Close must not panic
	Error("after close")
}
