package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/BradenHooton/loginguard/internal/models"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
)

// DefaultLogLimit is used when GET /logs has no limit parameter
const DefaultLogLimit = 100

// EventHistory reads the dashboard-visible tail of the event log
type EventHistory interface {
	Recent(ctx context.Context, limit int) ([]models.SecurityEvent, error)
}

type LogsHandler struct {
	history EventHistory
	logger  *slog.Logger
}

func NewLogsHandler(history EventHistory, logger *slog.Logger) *LogsHandler {
	return &LogsHandler{history: history, logger: logger}
}

// LogsResponse carries each event twice: as the rendered log line and as
// the structured record.
type LogsResponse struct {
	Logs   []string               `json:"logs"`
	Events []models.SecurityEvent `json:"events"`
}

func newLogsResponse(events []models.SecurityEvent) LogsResponse {
	resp := LogsResponse{Logs: make([]string, 0, len(events)), Events: events}
	for _, e := range events {
		resp.Logs = append(resp.Logs, e.Line())
	}
	if resp.Events == nil {
		resp.Events = []models.SecurityEvent{}
	}
	return resp
}

// List handles GET /logs?limit=N
func (h *LogsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := DefaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			pkghttp.WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	events, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to read security events", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, newLogsResponse(events))
}
