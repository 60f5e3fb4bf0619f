// Package logging provides structured logging for rrdsink.
//
// This package wraps the standard library's log/slog package to provide
// consistent logging across all components. It supports text and JSON
// output, an "auto" format that picks JSON when stdout is not a terminal,
// configurable log levels, and component-based loggers.
//
// Usage:
//
//	// Initialize at startup
//	logging.Init(slog.LevelInfo, logging.FormatAuto)
//
//	// Get a component logger
//	log := logging.Component("writer")
//	log.Info("database created", "path", path)
//
//	// Log with cycle context
//	logging.WithContext(ctx).Warn("nothing to write")
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Output formats accepted by Init.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatAuto = "auto"
)

// Logger is the global logger instance.
var Logger *slog.Logger

// Init initializes the global logger with the specified level and format.
func Init(level slog.Level, format string) {
	InitWithWriter(os.Stdout, level, format)
}

// InitWithWriter initializes the global logger writing to w.
func InitWithWriter(w io.Writer, level slog.Level, format string) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if useJSON(w, format) {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// InitWithHandler initializes the global logger with a custom handler.
// This is useful for testing or custom output destinations.
func InitWithHandler(handler slog.Handler) {
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

func useJSON(w io.Writer, format string) bool {
	switch format {
	case FormatJSON:
		return true
	case FormatAuto:
		f, ok := w.(*os.File)
		if !ok {
			return true
		}
		return !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
	default:
		return false
	}
}

// ParseLevel parses a level name (debug, info, warn, error).
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}

// With returns a new logger with additional attributes.
func With(args ...any) *slog.Logger {
	if Logger == nil {
		Init(slog.LevelInfo, FormatText)
	}
	return Logger.With(args...)
}

// Component returns a logger for a specific component.
// The component name is added as an attribute to all log entries.
//
// Example:
//
//	log := logging.Component("runner")
//	log.Info("started") // Output: time=... level=INFO component=runner msg=started
//
// Component loggers resolve the global handler on every record, so loggers
// created in package variables follow a later Init.
func Component(name string) *slog.Logger {
	attrs := []slog.Attr{slog.String("component", name)}
	return slog.New(lateHandler{wrap: func(h slog.Handler) slog.Handler {
		return h.WithAttrs(attrs)
	}})
}

// lateHandler applies its attributes and groups to the global handler at
// log time.
type lateHandler struct {
	wrap func(slog.Handler) slog.Handler
}

func (h lateHandler) resolve() slog.Handler {
	if Logger == nil {
		Init(slog.LevelInfo, FormatText)
	}
	return h.wrap(Logger.Handler())
}

func (h lateHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.resolve().Enabled(ctx, level)
}

func (h lateHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.resolve().Handle(ctx, r)
}

func (h lateHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return lateHandler{wrap: func(base slog.Handler) slog.Handler {
		return h.wrap(base).WithAttrs(attrs)
	}}
}

func (h lateHandler) WithGroup(name string) slog.Handler {
	return lateHandler{wrap: func(base slog.Handler) slog.Handler {
		return h.wrap(base).WithGroup(name)
	}}
}

// WithContext returns a logger that includes context values.
func WithContext(ctx context.Context) *slog.Logger {
	if Logger == nil {
		Init(slog.LevelInfo, FormatText)
	}
	return FromContext(ctx, Logger)
}

// FromContext decorates base with the cycle and output carried by ctx.
func FromContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	logger := base

	if cycleID, ok := ctx.Value(contextKeyCycleID).(string); ok {
		logger = logger.With("cycle_id", cycleID)
	}
	if output, ok := ctx.Value(contextKeyOutput).(string); ok {
		logger = logger.With("output", output)
	}

	return logger
}

// Context key types for type-safe context value extraction.
type contextKey int

const (
	contextKeyCycleID contextKey = iota
	contextKeyOutput
)

// ContextWithCycleID adds a cycle ID to the context for logging.
func ContextWithCycleID(ctx context.Context, cycleID string) context.Context {
	return context.WithValue(ctx, contextKeyCycleID, cycleID)
}

// CycleID returns the cycle ID carried by ctx, if any.
func CycleID(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyCycleID).(string)
	return id
}

// ContextWithOutput adds an output name to the context for logging.
func ContextWithOutput(ctx context.Context, output string) context.Context {
	return context.WithValue(ctx, contextKeyOutput, output)
}

// =============================================================================
// Convenience Functions
// =============================================================================

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	if Logger == nil {
		Init(slog.LevelInfo, FormatText)
	}
	Logger.Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	if Logger == nil {
		Init(slog.LevelInfo, FormatText)
	}
	Logger.Info(msg, args...)
}

// Warn logs at warning level.
func Warn(msg string, args ...any) {
	if Logger == nil {
		Init(slog.LevelInfo, FormatText)
	}
	Logger.Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	if Logger == nil {
		Init(slog.LevelInfo, FormatText)
	}
	Logger.Error(msg, args...)
}
