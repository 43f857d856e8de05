package server

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger creates a new structured logger writing to stdout
func NewLogger(level, format string) *slog.Logger {
	return NewLoggerTo(os.Stdout, level, format)
}

// NewLoggerTo creates a new structured logger writing to w
func NewLoggerTo(w io.Writer, level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
