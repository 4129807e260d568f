// Package logging sets up the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Environment variables read by Init.
const (
	EnvJSON  = "SIGSCAN_JSON_LOG"
	EnvLevel = "SIGSCAN_LOG_LEVEL"
)

// Init configures the default slog logger writing to w (stderr when nil).
// The handler is JSON when SIGSCAN_JSON_LOG is 1, true or json, text
// otherwise. The level comes from SIGSCAN_LOG_LEVEL.
func Init(component string, w io.Writer) *slog.Logger {
	return InitLevel(component, w, LevelFromEnv())
}

// InitLevel is Init with an explicit level, used when flags override the
// environment.
func InitLevel(component string, w io.Writer, level slog.Leveler) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if JSONFromEnv() {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler).With("component", component)
	slog.SetDefault(logger)
	return logger
}

// JSONFromEnv reports whether SIGSCAN_JSON_LOG asks for JSON output.
func JSONFromEnv() bool {
	switch strings.ToLower(os.Getenv(EnvJSON)) {
	case "1", "true", "json":
		return true
	}
	return false
}

// LevelFromEnv parses SIGSCAN_LOG_LEVEL. Unknown values fall back to info.
func LevelFromEnv() slog.Level {
	return ParseLevel(os.Getenv(EnvLevel))
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// OrDefault returns l, or slog.Default() when l is nil.
func OrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
