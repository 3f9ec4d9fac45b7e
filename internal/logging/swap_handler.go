package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// swapHandler forwards to a root handler that Initialize can replace, so
// loggers handed out earlier follow format and sink changes.
type swapHandler struct {
	root  *atomic.Pointer[slog.Handler]
	ops   []func(slog.Handler) slog.Handler
	cache atomic.Pointer[derivedHandler]
}

// derivedHandler is root with ops applied, keyed by the root it came from.
type derivedHandler struct {
	from    *slog.Handler
	handler slog.Handler
}

func newSwapHandler(h slog.Handler) *swapHandler {
	root := &atomic.Pointer[slog.Handler]{}
	root.Store(&h)
	return &swapHandler{root: root}
}

// swap installs h as the root for this handler and every derived one.
func (s *swapHandler) swap(h slog.Handler) {
	s.root.Store(&h)
}

func (s *swapHandler) current() slog.Handler {
	from := s.root.Load()
	if d := s.cache.Load(); d != nil && d.from == from {
		return d.handler
	}
	h := *from
	for _, op := range s.ops {
		h = op(h)
	}
	s.cache.Store(&derivedHandler{from: from, handler: h})
	return h
}

func (s *swapHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return (*s.root.Load()).Enabled(ctx, level)
}

func (s *swapHandler) Handle(ctx context.Context, r slog.Record) error {
	return s.current().Handle(ctx, r)
}

func (s *swapHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return s
	}
	return s.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (s *swapHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return s
	}
	return s.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (s *swapHandler) derive(op func(slog.Handler) slog.Handler) *swapHandler {
	ops := make([]func(slog.Handler) slog.Handler, len(s.ops), len(s.ops)+1)
	copy(ops, s.ops)
	return &swapHandler{root: s.root, ops: append(ops, op)}
}
