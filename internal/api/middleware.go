package api

import (
	"log/slog"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/streamrec/internal/logging"
)

// HTTPLoggingMiddleware logs each request once it completes. Polling
// endpoints log at debug; client errors warn and server errors error.
func HTTPLoggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	next(ctx)

	path := ctx.URL().Path
	status := ctx.Status()
	attrs := []slog.Attr{
		slog.String("method", ctx.Method()),
		slog.String("path", path),
		slog.String("remote_addr", ctx.RemoteAddr()),
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)),
	}
	if q := ctx.URL().RawQuery; q != "" {
		attrs = append(attrs, slog.String("query", q))
	}

	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	case path == "/api/health" || strings.HasPrefix(path, "/api/events"):
		level = slog.LevelDebug
	}
	logging.GetLogger("http").LogAttrs(ctx.Context(), level, "HTTP request completed", attrs...)
}
