// Package logging constructs the process-wide structured logger.
// Output goes to stderr by default, keeping stdout free for command
// output; when a log directory is configured a JSON file handler is
// added alongside.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Options control logger construction.
type Options struct {
	Verbose bool
	// LogDir, when non-empty, receives a forge_YYYY-MM-DD.log JSON file.
	LogDir string
}

// New builds a logger per Options. The returned close function flushes
// and closes the log file, if any, and is safe to call when no file was
// opened.
func New(opts Options) (*slog.Logger, func() error, error) {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}

	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})

	if opts.LogDir == "" {
		return slog.New(stderrHandler), func() error { return nil }, nil
	}

	if err := os.MkdirAll(opts.LogDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	name := fmt.Sprintf("forge_%s.log", time.Now().Format("2006-01-02"))
	f, err := os.OpenFile(filepath.Join(opts.LogDir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	fileHandler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})
	return slog.New(newTeeHandler(stderrHandler, fileHandler)), f.Close, nil
}

// Discard returns a logger that drops everything; used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
