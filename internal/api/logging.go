package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/streamrec/internal/api/models"
	"github.com/smazurov/streamrec/internal/logging"
)

// registerLoggingRoutes registers runtime log level control.
func (s *Server) registerLoggingRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "set-log-level",
		Method:      http.MethodPut,
		Path:        "/api/logging/{module}",
		Summary:     "Set Log Level",
		Description: "Change the level of one module logger until the next restart",
		Tags:        []string{"system"},
		Errors:      []int{400, 404},
	}, func(_ context.Context, input *models.LogLevelRequest) (*models.LogLevelResponse, error) {
		if err := logging.SetModuleLevel(input.Module, input.Body.Level); err != nil {
			if errors.Is(err, logging.ErrUnknownModule) {
				return nil, huma.Error404NotFound(err.Error())
			}
			return nil, huma.Error400BadRequest(err.Error())
		}
		s.logger.Info("Log level changed", "log_module", input.Module, "level", input.Body.Level)
		return &models.LogLevelResponse{
			Body: models.LogLevelData{Module: input.Module, Level: input.Body.Level},
		}, nil
	})
}
