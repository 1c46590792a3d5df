// Package klog provides the structured logging ambient dependency the
// kernel-internal packages use in place of the teacher's freestanding
// kfmt package, which assumes there is no heap and no OS underneath it.
// This module is hosted, so klog wraps the standard library's log/slog
// instead (see DESIGN.md for why no third-party logging library is used).
package klog

import (
	"context"
	"log/slog"
	"os"
)

// logger is the process-wide structured logger. Tests may swap it via
// SetOutput to capture output deterministically.
var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// SetOutput replaces the underlying handler, mirroring the way the teacher's
// hal.ActiveTerminal can be redirected for tests.
func SetOutput(h slog.Handler) {
	logger = slog.New(h)
}

// Module returns a logger pre-tagged with the given subsystem name, mirroring
// the "Module" field carried by kernel.Error.
func Module(name string) *slog.Logger {
	return logger.With(slog.String("module", name))
}

// Debugf, Infof, Warnf and Errorf are thin printf-style wrappers kept for
// call sites translated directly from the teacher's early.Printf usage.
func Debugf(module, format string, args ...any) {
	logger.Log(context.Background(), slog.LevelDebug, sprintf(format, args...), slog.String("module", module))
}

func Infof(module, format string, args ...any) {
	logger.Log(context.Background(), slog.LevelInfo, sprintf(format, args...), slog.String("module", module))
}

func Warnf(module, format string, args ...any) {
	logger.Log(context.Background(), slog.LevelWarn, sprintf(format, args...), slog.String("module", module))
}

func Errorf(module, format string, args ...any) {
	logger.Log(context.Background(), slog.LevelError, sprintf(format, args...), slog.String("module", module))
}
