package logging

import (
	"context"
	"errors"
	"log/slog"
)

// MultiHandler writes each record to every sink that accepts its level.
// A failing sink does not stop the others; Handle reports all failures.
type MultiHandler struct {
	sinks []slog.Handler
}

// NewMultiHandler fans records out to sinks.
func NewMultiHandler(sinks ...slog.Handler) *MultiHandler {
	return &MultiHandler{sinks: sinks}
}

func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, sink := range m.sinks {
		if sink.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, sink := range m.sinks {
		if !sink.Enabled(ctx, r.Level) {
			continue
		}
		if err := sink.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	return m.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (m *MultiHandler) each(fn func(slog.Handler) slog.Handler) *MultiHandler {
	sinks := make([]slog.Handler, 0, len(m.sinks))
	for _, sink := range m.sinks {
		sinks = append(sinks, fn(sink))
	}
	return &MultiHandler{sinks: sinks}
}
