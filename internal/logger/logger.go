// Package logger builds the file logger used while the terminal belongs to
// the UI.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// New returns a text logger appending to path. An empty path discards all
// output. The returned function closes the file.
func New(path string, verbose bool) (*slog.Logger, func() error, error) {
	if path == "" {
		return slog.New(slog.DiscardHandler), func() error { return nil }, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}

	l := NewWithWriter(f, verbose)
	l.Info("kahva logging started", "pid", os.Getpid())
	return l, f.Close, nil
}

// NewWithWriter returns a text logger writing to w.
func NewWithWriter(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
