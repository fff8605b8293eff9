// Package log wraps log/slog with component-tagged loggers, shared field
// names and request-scoped loggers carried in the context.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is a slog.Logger tagged with a component. The component attribute
// is attached once, so With and WithComponent never duplicate it.
type Logger struct {
	*slog.Logger
	base      *slog.Logger
	component string
}

// Config holds logger configuration
type Config struct {
	Level     slog.Level
	Component string
	Handler   slog.Handler
}

// New creates a new logger with the given configuration
func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.Level,
		})
	}
	return newLogger(slog.New(handler), config.Component)
}

func newLogger(base *slog.Logger, component string) *Logger {
	l := base
	if component != "" {
		l = base.With(FieldComponent, component)
	}
	return &Logger{Logger: l, base: base, component: component}
}

// With returns a new logger with the given attributes
func (l *Logger) With(args ...any) *Logger {
	return newLogger(l.base.With(args...), l.component)
}

// WithComponent returns a new logger with a specific component name
func (l *Logger) WithComponent(component string) *Logger {
	return newLogger(l.base, component)
}

// ForOwner returns a logger that tags every record with the owner id.
func (l *Logger) ForOwner(ownerID string) *Logger {
	return l.With(FieldOwnerID, ownerID)
}

// SetDefault installs logger as the slog default without its component, so
// package-level slog calls tag their own component.
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.base)
}

// ParseLevel maps debug, info, warn and error (any case) to a slog level.
// Anything else yields info.
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
