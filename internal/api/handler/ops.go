package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dosepoint/dosepoint/internal/api/models"
	"github.com/dosepoint/dosepoint/internal/api/response"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	pool      *pgxpool.Pool
}

// NewOpsHandler creates a new OpsHandler. pool may be nil when the service
// runs without a database, in which case readiness only reports liveness.
func NewOpsHandler(version, buildTime string, pool *pgxpool.Pool) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		pool:      pool,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}

	if h.pool != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pool.Ping(ctx); err != nil {
			health.Status = models.HealthStatusFail
			response.JSON(w, r, http.StatusServiceUnavailable, health)
			return
		}
	}

	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	now := models.Timestamp(time.Now())

	dbStatus := models.HealthStatusOK
	if h.pool != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pool.Ping(ctx); err != nil {
			dbStatus = models.HealthStatusFail
		}
	}

	overall := models.HealthStatusOK
	if dbStatus != models.HealthStatusOK {
		overall = models.HealthStatusDegraded
	}

	status := models.SystemStatus{
		Status: overall,
		Time:   now,
		Subsystems: []models.SubsystemStatus{
			{Name: "postgres", Status: dbStatus},
		},
	}
	response.JSON(w, r, http.StatusOK, status)
}
