package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/streamrec/internal/api/models"
	"github.com/smazurov/streamrec/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of target additions, removals, state changes and output signals",
		Tags:        []string{"events"},
	}, map[string]any{
		"connected":            models.ConnectedEvent{},
		"target-state-changed": events.TargetStateChangedEvent{},
		"target-signal":        events.TargetSignalEvent{},
		"target-added":         events.TargetAddedEvent{},
		"target-removed":       events.TargetRemovedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)
		cancel := events.Stream(s.eventBus, eventCh)
		defer cancel()

		// Headers go out with the first message; confirm the subscription
		// so clients are not left waiting for target activity.
		if err := send.Data(models.ConnectedEvent{
			Message:   "event stream connected",
			Timestamp: time.Now().Format(time.RFC3339),
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
