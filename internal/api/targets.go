package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/streamrec/internal/api/models"
	"github.com/smazurov/streamrec/internal/metrics"
	"github.com/smazurov/streamrec/internal/registry"
)

// registerTargetRoutes registers all target-related endpoints.
func (s *Server) registerTargetRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-targets",
		Method:      http.MethodGet,
		Path:        "/api/targets",
		Summary:     "List Targets",
		Description: "Get all supervised targets with their capture state",
		Tags:        []string{"targets"},
		Errors:      []int{500},
	}, func(_ context.Context, _ *struct{}) (*models.TargetListResponse, error) {
		list := s.registry.List()
		data := make([]models.TargetData, len(list))
		for i, st := range list {
			data[i] = s.toTargetData(st)
		}
		return &models.TargetListResponse{
			Body: models.TargetListData{
				Targets: data,
				Count:   len(data),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-target",
		Method:      http.MethodGet,
		Path:        "/api/targets/{target}",
		Summary:     "Get Target",
		Description: "Get the capture state of one target",
		Tags:        []string{"targets"},
		Errors:      []int{404, 500},
	}, func(_ context.Context, input *models.TargetPath) (*models.TargetResponse, error) {
		st, err := s.registry.Status(input.Target)
		if err != nil {
			return nil, s.mapTargetError(err)
		}
		return &models.TargetResponse{Body: s.toTargetData(st)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "add-target",
		Method:        http.MethodPost,
		Path:          "/api/targets/{target}",
		Summary:       "Add Target",
		Description:   "Start supervising a target. The first launch is scheduled after a random delay.",
		Tags:          []string{"targets"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{400, 409, 500},
	}, func(_ context.Context, input *models.TargetPath) (*models.TargetResponse, error) {
		if err := s.registry.Add(input.Target); err != nil {
			return nil, s.mapTargetError(err)
		}
		st, err := s.registry.Status(input.Target)
		if err != nil {
			return nil, s.mapTargetError(err)
		}
		return &models.TargetResponse{Body: s.toTargetData(st)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "start-target",
		Method:      http.MethodPost,
		Path:        "/api/targets/{target}/start",
		Summary:     "Start Target",
		Description: "Schedule a launch now instead of waiting for the restart sweep. Does nothing while a launch is pending or running.",
		Tags:        []string{"targets"},
		Errors:      []int{404, 409, 500},
	}, func(_ context.Context, input *models.TargetPath) (*models.TargetResponse, error) {
		if err := s.registry.Start(input.Target); err != nil {
			return nil, s.mapTargetError(err)
		}
		st, err := s.registry.Status(input.Target)
		if err != nil {
			return nil, s.mapTargetError(err)
		}
		return &models.TargetResponse{Body: s.toTargetData(st)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "delete-target",
		Method:        http.MethodDelete,
		Path:          "/api/targets/{target}",
		Summary:       "Remove Target",
		Description:   "Stop the target's capture and forget it",
		Tags:          []string{"targets"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{404, 500},
	}, func(_ context.Context, input *models.TargetPath) (*struct{}, error) {
		if err := s.registry.Remove(input.Target); err != nil {
			return nil, s.mapTargetError(err)
		}
		return &struct{}{}, nil
	})
}

// toTargetData converts a registry status to API target data.
func (s *Server) toTargetData(st registry.Status) models.TargetData {
	data := models.TargetData{
		Target:     st.Target,
		State:      string(st.State),
		Active:     st.Active,
		Condition:  string(st.Condition),
		PID:        st.PID,
		Launches:   st.Launches,
		OutputPath: st.OutputPath,
		LastSignal: st.LastSignal,
		LastError:  st.LastError,
	}
	if !st.RestartAt.IsZero() {
		at := st.RestartAt
		data.RestartAt = &at
	}
	if !st.StartedAt.IsZero() {
		started := st.StartedAt
		data.StartedAt = &started
	}
	if s.metrics {
		if m := metrics.GetTargetMetrics(st.Target); m != nil {
			data.Metrics = &models.TargetMetricsData{
				Starts:        m.Starts,
				Stops:         m.Stops,
				SpawnFailures: m.SpawnFailures,
				Signals:       m.Signals,
			}
		}
	}
	return data
}
