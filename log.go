package layerz

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/zoobzio/layerz/config"
)

// LogHandler is a slog.Handler that adds the current X-Trace token to
// records logged with a tracing context.
type LogHandler struct {
	inner slog.Handler
}

// NewLogHandler wraps inner.
func NewLogHandler(inner slog.Handler) *LogHandler {
	return &LogHandler{inner: inner}
}

// Enabled reports whether the handler handles records at the given level.
func (h *LogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle adds x_trace when ctx is tracing.
func (h *LogHandler) Handle(ctx context.Context, r slog.Record) error {
	if token := TraceID(ctx); token != "" {
		r.AddAttrs(slog.String("x_trace", token))
	}
	return h.inner.Handle(ctx, r)
}

// WithAttrs returns a new LogHandler with the given attributes added.
func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogHandler{inner: h.inner.WithAttrs(attrs)}
}

// WithGroup returns a new LogHandler with the given group name.
func (h *LogHandler) WithGroup(name string) slog.Handler {
	return &LogHandler{inner: h.inner.WithGroup(name)}
}

// NewLogger builds a logger from configuration. Output defaults to stderr.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var inner slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		inner = slog.NewTextHandler(w, opts)
	} else {
		inner = slog.NewJSONHandler(w, opts)
	}

	return slog.New(NewLogHandler(inner)).With("component", "layerz")
}

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
