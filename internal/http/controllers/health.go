package controllers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/dropDatabas3/ragsig/internal/http/dto"
	httperrors "github.com/dropDatabas3/ragsig/internal/http/errors"
	"github.com/dropDatabas3/ragsig/internal/observability/logger"
)

// HealthCheck verifica una dependencia (store, redis).
type HealthCheck func(ctx context.Context) error

const checkTimeout = 2 * time.Second

type HealthController struct {
	checks map[string]HealthCheck
}

func NewHealthController(checks map[string]HealthCheck) *HealthController {
	return &HealthController{checks: checks}
}

// Readyz maneja GET /readyz. 503 si alguna dependencia falla.
func (c *HealthController) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("HealthController.Readyz"))

	names := make([]string, 0, len(c.checks))
	for n := range c.checks {
		names = append(names, n)
	}
	sort.Strings(names)

	resp := dto.HealthResponse{Status: "ready", Components: make(map[string]string, len(names))}
	for _, n := range names {
		if err := c.checks[n](ctx); err != nil {
			log.Warn("health check failed", logger.Component(n), logger.Err(err))
			resp.Components[n] = "down"
			resp.Status = "unavailable"
			continue
		}
		resp.Components[n] = "up"
	}

	status := http.StatusOK
	if resp.Status != "ready" {
		status = httperrors.ErrServiceUnavailable.HTTPStatus
		resp.Code = httperrors.ErrServiceUnavailable.Code
		resp.Message = httperrors.ErrServiceUnavailable.Message
	}
	httperrors.WriteJSON(w, status, resp)
}
