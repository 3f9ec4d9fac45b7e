package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/smazurov/streamrec/internal/api/models"
	"github.com/smazurov/streamrec/internal/events"
	"github.com/smazurov/streamrec/internal/logging"
	"github.com/smazurov/streamrec/internal/registry"
	"github.com/smazurov/streamrec/internal/version"
)

// TargetRegistry is the part of *registry.Registry the API drives.
type TargetRegistry interface {
	Add(target string) error
	Remove(target string) error
	Start(target string) error
	Status(target string) (registry.Status, error)
	List() []registry.Status
}

// Options configures the API server.
type Options struct {
	Registry          TargetRegistry
	EventBus          *events.Bus  // Optional, enables /api/events
	PrometheusHandler http.Handler // Optional Prometheus metrics handler
}

// Server is the Huma v2 API server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	registry   TargetRegistry
	eventBus   *events.Bus
	metrics    bool
	logger     *slog.Logger
}

// NewServer creates a new API server with Huma v2 using Go 1.22+ native routing.
func NewServer(opts *Options) *Server {
	if opts == nil || opts.Registry == nil {
		panic("api: Options with Registry is required")
	}

	mux := http.NewServeMux()

	config := huma.DefaultConfig("streamrec API", version.Version)
	config.Info.Description = "Status and control of supervised capture processes"
	// Empty servers list will make OpenAPI use relative paths, working with any host
	config.Servers = []*huma.Server{}

	api := humago.New(mux, config)

	server := &Server{
		api:        api,
		mux:        mux,
		httpServer: &http.Server{Handler: mux},
		registry:   opts.Registry,
		eventBus:   opts.EventBus,
		metrics:    opts.PrometheusHandler != nil,
		logger:     logging.GetLogger("api"),
	}

	api.UseMiddleware(HTTPLoggingMiddleware)

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()
	return server
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Listen binds addr without serving, so callers can fail fast on a busy
// port before starting other work.
func (s *Server) Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.logger.Info("API server listening", "addr", ln.Addr().String())
	s.logger.Info("OpenAPI documentation available", "url", "http://"+ln.Addr().String()+"/docs")
	return ln, nil
}

// Serve handles requests on ln until Stop is called. It returns
// http.ErrServerClosed after Stop, including a Stop that came first, and
// always closes ln.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Stop closes the listener and all connections immediately. SSE clients
// would hold a graceful shutdown open.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	return s.httpServer.Close()
}

// registerRoutes sets up all API endpoints.
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		list := s.registry.List()
		active := 0
		for _, st := range list {
			if st.Active {
				active++
			}
		}
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
				Targets: len(list),
				Active:  active,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				GoVersion: info.GoVersion,
				Platform:  info.Platform,
			},
		}, nil
	})

	s.registerTargetRoutes()
	s.registerLoggingRoutes()

	if s.eventBus != nil {
		s.registerSSERoutes()
	}
}

// mapTargetError maps registry errors to HTTP errors.
func (s *Server) mapTargetError(err error) error {
	switch {
	case errors.Is(err, registry.ErrTargetNotFound):
		return huma.Error404NotFound("target not found", err)
	case errors.Is(err, registry.ErrTargetExists):
		return huma.Error409Conflict("target already exists", err)
	case errors.Is(err, registry.ErrTargetInvalid):
		return huma.Error409Conflict("target was reported as invalid; remove and re-add it to retry", err)
	case errors.Is(err, registry.ErrInvalidTargetName):
		return huma.Error400BadRequest("invalid target name", err)
	default:
		s.logger.Error("Target operation failed", "error", err)
		return huma.Error500InternalServerError("internal server error", err)
	}
}
