// Package logger provides structured logging using slog with invocation context support.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// InvocationIDKey is the context key for the build invocation ID.
	InvocationIDKey contextKey = "invocation_id"
	// NixFileKey is the context key for the Nix file being built.
	NixFileKey contextKey = "nix_file"
)

// Logger wraps slog.Logger with additional context-aware methods.
type Logger struct {
	*slog.Logger
}

// New creates a new Logger writing to stderr with the specified level and format.
func New(level slog.Level, json bool) *Logger {
	return NewWithWriter(os.Stderr, level, json)
}

// NewWithWriter creates a new Logger writing to w.
func NewWithWriter(w io.Writer, level slog.Level, json bool) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// Default creates a logger with default settings (INFO level, text format).
func Default() *Logger {
	return New(slog.LevelInfo, false)
}

// ParseLevel maps debug, info, warn and error to slog levels. Unknown
// values map to info.
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

// WithContext returns a new Logger with fields extracted from the context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	logger := l.Logger

	if id, ok := ctx.Value(InvocationIDKey).(string); ok && id != "" {
		logger = logger.With("invocation_id", id)
	}

	if file, ok := ctx.Value(NixFileKey).(string); ok && file != "" {
		logger = logger.With("nix_file", file)
	}

	return &Logger{Logger: logger}
}

// WithComponent returns a new Logger with the component field.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", component),
	}
}

// ContextWithInvocationID adds an invocation ID to the context.
func ContextWithInvocationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, InvocationIDKey, id)
}

// ContextWithNixFile adds the Nix file being built to the context.
func ContextWithNixFile(ctx context.Context, file string) context.Context {
	return context.WithValue(ctx, NixFileKey, file)
}

// InvocationIDFromContext extracts the invocation ID from context.
func InvocationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(InvocationIDKey).(string); ok {
		return id
	}
	return ""
}
