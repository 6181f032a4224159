package storefront

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// SlogOptions configures NewSlogLogger.
type SlogOptions struct {
	Level     string
	AddSource bool
	Output    io.Writer
}

type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger returns a Logger writing JSON records through log/slog.
func NewSlogLogger(opts SlogOptions) Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	h := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level:     ParseLogLevel(opts.Level),
		AddSource: opts.AddSource,
	})
	return slogLogger{l: slog.New(h).With("component", "storefront")}
}

// SlogAdapter wraps an existing *slog.Logger.
func SlogAdapter(l *slog.Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return slogLogger{l: l}
}

func (s slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

// ParseLogLevel maps a level name to a slog.Level, defaulting to info.
func ParseLogLevel(lvl string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
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
