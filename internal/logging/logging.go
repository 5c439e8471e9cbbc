// Package logging builds the [log/slog] logger gooffline writes its progress
// and per-coordinate warnings to, and carries it through resolution in the
// context. Records are tagged with the project and batch being resolved.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/hupe1980/gooffline/internal/config"
)

type ctxKey struct{}

// Setup is SetupWithWriter on stderr.
func Setup(cfg *config.Config) *slog.Logger {
	return SetupWithWriter(cfg, os.Stderr)
}

// SetupWithWriter builds the logger for cfg on w and makes it the slog
// default. --quiet lowers output to errors only.
func SetupWithWriter(cfg *config.Config, w io.Writer) *slog.Logger {
	level := ParseLevel(cfg.EffectiveLogLevel())
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler

	switch cfg.LogFormat {
	case config.LogFormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default: // text
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(level string) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewContext returns a child context carrying logger.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext extracts a logger from ctx, falling back to slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}

	return slog.Default()
}

// WithProject returns a child context whose logger tags every record with
// the project being resolved.
func WithProject(ctx context.Context, projectID string) (context.Context, *slog.Logger) {
	return with(ctx, slog.String("project", projectID))
}

// WithBatch tags records with the batch name ("dependencies" or "plugins").
func WithBatch(ctx context.Context, batch string) (context.Context, *slog.Logger) {
	return with(ctx, slog.String("batch", batch))
}

func with(ctx context.Context, attr slog.Attr) (context.Context, *slog.Logger) {
	logger := FromContext(ctx).With(attr)
	return NewContext(ctx, logger), logger
}
