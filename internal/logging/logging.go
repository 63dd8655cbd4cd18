// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the slog.Logger used across molsearch: colored
// console output through tint by default, JSON lines on request.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/pdiddy/molsearch/pkg/types"
)

// New creates a logger from cfg. The returned close function releases the
// log file when Output names one; it is a no-op otherwise.
func New(cfg types.LogConfig) (*slog.Logger, func() error, error) {
	closer := func() error { return nil }

	var w io.Writer
	switch cfg.Output {
	case "stderr", "":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, closer, fmt.Errorf("opening log file %s: %w", cfg.Output, err)
		}
		w = f
		closer = f.Close
	}

	handler, err := NewHandler(w, cfg)
	if err != nil {
		closer()
		return nil, func() error { return nil }, err
	}
	return slog.New(handler), closer, nil
}

// NewHandler returns the slog.Handler for cfg writing to w.
func NewHandler(w io.Writer, cfg types.LogConfig) (slog.Handler, error) {
	level := ParseLevel(cfg.Level)

	switch strings.ToLower(cfg.Format) {
	case "console", "":
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			NoColor:    !isTerminal(w),
		}), nil
	case "json":
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}), nil
	default:
		return nil, fmt.Errorf("unsupported log format %q: use console or json", cfg.Format)
	}
}

// ParseLevel converts a level name to slog.Level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops every record. Tests and library
// callers without a logger use it.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
