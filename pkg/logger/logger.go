// Package logger provides the process-wide logger used by the runner and
// the locator engine. Output is discarded until Init or SetConsole is called.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	globalLogger = newDiscardLogger()
	logFile      io.WriteCloser
	mu           sync.Mutex
)

// Options configures the log file.
type Options struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`  // Rotate after this size, default 50
	MaxBackups int    `yaml:"maxBackups"` // Rotated files kept, default 3
	JSON       bool   `yaml:"json"`
}

func newDiscardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Init initializes the global logger with the specified log file path.
func Init(logPath string) error {
	return InitWithOptions(Options{File: logPath, Level: "debug"})
}

// InitWithOptions initializes the global logger with rotation and level settings.
func InitWithOptions(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	if opts.File == "" {
		return fmt.Errorf("log file path is required")
	}

	// Close previous log file if exists
	if logFile != nil {
		logFile.Close()
	}

	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 50
	}
	maxBackups := opts.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 3
	}

	// Fail early on an unwritable path; lumberjack would only report it on first write
	f, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644) //#nosec G304 -- user-provided log path
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	f.Close()

	logFile = &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
	}

	l := logrus.New()
	l.SetOutput(logFile)
	l.SetLevel(parseLevel(opts.Level))
	if opts.JSON {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "15:04:05.000000"})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			DisableColors:   true,
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000000",
		})
	}
	globalLogger = l
	return nil
}

// SetConsole sends log output to w (typically os.Stderr) at the given level.
// Used for --verbose runs without a log file.
func SetConsole(w io.Writer, level string) {
	mu.Lock()
	defer mu.Unlock()

	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(parseLevel(level))
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	globalLogger = l
}


func parseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// Close closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	globalLogger = newDiscardLogger()
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	current().Infof(format, v...)
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	current().Debugf(format, v...)
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	current().Errorf(format, v...)
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	current().Warnf(format, v...)
}

// WithRun returns an entry tagged with the run id, for per-run log lines.
func WithRun(runID string) *logrus.Entry {
	return current().WithField("run_id", runID)
}



func current() *logrus.Logger {
	mu.Lock()
	defer mu.Unlock()
	return globalLogger
}
