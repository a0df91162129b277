package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a structured logger. format is "json" or "text"; level
// is one of: debug, info, warn, error. component identifies which binary
// emitted the line (e.g. "nightwatchd", "nightwatch-agent") so output of
// the two binaries can be told apart when it is collected in one place.
// Lines go to stdout; they are not written to internal/store/logs.go.
func NewLogger(format, level, component string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler

	var w io.Writer = os.Stdout
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With("component", component)
}
