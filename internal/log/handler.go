package log

import (
	"context"
	"log/slog"
	"os"

	"github.com/ErlanBelekov/todo-api/internal/requestid"
	"github.com/lmittmann/tint"
)

// ContextHandler wraps an slog.Handler and copies request-scoped identifiers
// (request_id, user_id) from the record's context onto the record.
type ContextHandler struct {
	inner slog.Handler
}

func NewContextHandler(inner slog.Handler) *ContextHandler {
	return &ContextHandler{inner: inner}
}

// New builds the process logger: colored text for local development, JSON
// everywhere else.
func New(env string, level slog.Level) *slog.Logger {
	var base slog.Handler
	if env == "local" {
		base = tint.NewHandler(os.Stdout, &tint.Options{Level: level})
	} else {
		base = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(NewContextHandler(base))
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := requestid.FromContext(ctx); id != "" {
		r.AddAttrs(slog.String("request_id", id))
	}
	if id := requestid.UserIDFromContext(ctx); id != "" {
		r.AddAttrs(slog.String("user_id", id))
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name)}
}
