package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
)

// ServiceName is reported by the health endpoint
const ServiceName = "loginguard"

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	db      HealthChecker
	logger  *slog.Logger
	nowFunc func() time.Time
}

func NewHealthHandler(db HealthChecker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger, nowFunc: time.Now}
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Database  string    `json:"database"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: h.nowFunc().UTC(),
		Service:   ServiceName,
		Database:  "up",
	}

	status := http.StatusOK
	if err := h.db.HealthCheck(r.Context()); err != nil {
		h.logger.Warn("health check failed", slog.Any("error", err))
		resp.Status = "degraded"
		resp.Database = "down"
		status = http.StatusServiceUnavailable
	}

	pkghttp.WriteJSON(w, status, resp)
}
