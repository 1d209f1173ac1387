package logging

import (
	"context"
	"log/slog"
)

// levelOverrideHandler raises the minimum level of one logger without
// touching the shared handler's level.
type levelOverrideHandler struct {
	next  slog.Handler
	level slog.Level
}

func (h *levelOverrideHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level && h.next.Enabled(ctx, level)
}

func (h *levelOverrideHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.level {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *levelOverrideHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelOverrideHandler{next: h.next.WithAttrs(attrs), level: h.level}
}

func (h *levelOverrideHandler) WithGroup(name string) slog.Handler {
	return &levelOverrideHandler{next: h.next.WithGroup(name), level: h.level}
}

// WithLevelOverride returns a logger that drops records below level. The HTTP
// clients use it so per-attempt request chatter stays out of info logs.
func WithLevelOverride(logger *slog.Logger, level slog.Level) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	if existing, ok := logger.Handler().(*levelOverrideHandler); ok {
		return slog.New(&levelOverrideHandler{next: existing.next, level: level})
	}
	return slog.New(&levelOverrideHandler{next: logger.Handler(), level: level})
}
