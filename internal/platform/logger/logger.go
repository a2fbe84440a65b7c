// Package logger configures the structured logger shared by every component.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a config string onto a slog level. Unknown values fall back to info.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// New builds a JSON logger writing to w at the given level.
func New(w io.Writer, level string) *slog.Logger {
	lvl, ok := ParseLevel(level)
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	if !ok {
		logger.Warn("invalid log level configured, using default level",
			"configured_level", level,
			"default_level", "info")
	}
	return logger
}

// Setup creates the stdout logger and installs it as the slog default.
func Setup(level string) *slog.Logger {
	logger := New(os.Stdout, level)
	slog.SetDefault(logger)
	return logger
}

// AsynqAdapter satisfies asynq.Logger on top of slog.
type AsynqAdapter struct {
	Logger *slog.Logger
}

func (a AsynqAdapter) Debug(args ...interface{}) { a.Logger.Debug(fmt.Sprint(args...)) }
func (a AsynqAdapter) Info(args ...interface{})  { a.Logger.Info(fmt.Sprint(args...)) }
func (a AsynqAdapter) Warn(args ...interface{})  { a.Logger.Warn(fmt.Sprint(args...)) }
func (a AsynqAdapter) Error(args ...interface{}) { a.Logger.Error(fmt.Sprint(args...)) }

func (a AsynqAdapter) Fatal(args ...interface{}) {
	a.Logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}

// Discard returns a logger that drops everything; handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
