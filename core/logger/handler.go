package logger

import (
	"context"
	"io"
	"log/slog"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level  slog.Leveler
	writer io.Writer
	format logFormat
}

// contextHandler enriches records with correlation fields carried in context
// (rid, update/chat/user ids, handler) before delegating to a stdlib handler.
type contextHandler struct {
	inner slog.Handler
}

func newContextHandler(cfg handlerConfig) *contextHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{
		Level:       cfg.level,
		ReplaceAttr: replaceAttr,
	}
	var inner slog.Handler
	if cfg.format == formatKV {
		inner = slog.NewTextHandler(cfg.writer, opts)
	} else {
		inner = slog.NewJSONHandler(cfg.writer, opts)
	}
	return &contextHandler{inner: inner}
}

// Enabled reports whether the wrapped handler allows processing the provided level.
func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle appends context fields to the record and forwards it.
func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	present := make(map[string]struct{}, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		present[a.Key] = struct{}{}
		return true
	})
	add := func(a slog.Attr) {
		if _, ok := present[a.Key]; ok {
			return
		}
		r.AddAttrs(a)
	}

	if rid := RIDFrom(ctx); rid != "" {
		add(slog.String("rid", CompactRID(rid)))
	}
	if id := UpdateIDFrom(ctx); id != 0 {
		add(slog.Int("update_id", id))
	}
	if id := ChatIDFrom(ctx); id != 0 {
		add(slog.Int64("chat_id", id))
	}
	if id := UserIDFrom(ctx); id != 0 {
		add(slog.Int64("user_id", id))
	}
	if name := HandlerFrom(ctx); name != "" {
		add(slog.String("handler", name))
	}
	return h.inner.Handle(ctx, r)
}

// WithAttrs returns a copy of the handler enriched with attrs.
func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{inner: h.inner.WithAttrs(attrs)}
}

// WithGroup returns a copy of the handler scoped to the group.
func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{inner: h.inner.WithGroup(name)}
}

func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		if t, ok := a.Value.Any().(time.Time); ok {
			return slog.String("ts", t.UTC().Format(timeFormatMillis))
		}
	case slog.MessageKey:
		// events carry their name in the "event" attr; empty messages are noise
		if a.Value.String() == "" {
			return slog.Attr{}
		}
	}
	return a
}
