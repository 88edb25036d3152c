// Package logging provides structured logging configuration using log/slog.
//
// Storage backends log through the process-wide default logger: artifact
// writes and reads at debug, format-limitation workarounds (such as the
// container backend widening nullable integer columns) at warn.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Setup configures the global slog logger based on level and format.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
//
// Use "json" format in production for machine parsing, "text" in
// development for human readability.
func Setup(level, format string) {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
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

// WithFields returns a logger carrying consistent backend context through a
// multi-step operation.
//
// Usage:
//
//	log := logging.WithFields("backend", store.RootPath(), "table", name)
//	log.Info("ingest started")
//	// ... later ...
//	log.Info("ingest completed", "rows", n)
func WithFields(args ...any) *slog.Logger {
	return slog.Default().With(args...)
}
