// Package logger provides structured logging functionality for the application.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// LoggerConfig holds the settings needed to configure the logger.
type LoggerConfig struct {
	// Level is the minimum log level: debug, info, warn, or error.
	Level string
}

// contextKey is the private type used for storing the logger in a context.
type contextKey struct{}

// loggerKey is the context key under which a request-scoped logger is stored.
var loggerKey = contextKey{}

// Setup initializes and configures the application's logging system based on
// the provided configuration. It creates a structured JSON logger with the
// appropriate log level, sets it as the process default, and returns it.
func Setup(cfg LoggerConfig) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo

		tmpLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmpLogger.Warn("invalid log level configured, using default level",
			"configured_level", cfg.Level,
			"default_level", "info")
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger, nil
}

// WithLogger returns a copy of the context carrying the given logger.
// Request middleware uses this to propagate a logger enriched with
// request-scoped attributes.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored in the context, or the process
// default logger when none is set.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}
