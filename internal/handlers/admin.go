package handlers

import (
	"log/slog"
	"net/http"

	"github.com/BradenHooton/loginguard/internal/middleware"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/services"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
)

// BlockResetter clears blocked sessions and failure counters
type BlockResetter interface {
	ResetAll() models.TrackerStats
	Stats() models.TrackerStats
}

// AdminHandler serves operator actions on the abuse tracker
type AdminHandler struct {
	tracker  BlockResetter
	recorder services.EventRecorder
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

func NewAdminHandler(tracker BlockResetter, recorder services.EventRecorder, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{tracker: tracker, recorder: recorder, ipConfig: ipConfig, logger: logger}
}

// ResetBlocksResponse reports what a reset cleared
type ResetBlocksResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Cleared models.TrackerStats `json:"cleared"`
}

// ResetBlocks handles POST /reset-blocks
func (h *AdminHandler) ResetBlocks(w http.ResponseWriter, r *http.Request) {
	cleared := h.tracker.ResetAll()

	ip := pkghttp.ExtractClientIP(r, h.ipConfig)
	sessionID := middleware.SessionIDFromContext(r.Context())
	event := models.SecurityEvent{
		Category:  models.EventSecurity,
		Message:   "All blocks and rate limits reset",
		IPAddress: &ip,
		Metadata: models.EventMetadata{
			"blocked_sessions":  cleared.BlockedSessions,
			"tracked_usernames": cleared.TrackedUsernames,
		},
	}
	if sessionID != "" {
		event.SessionID = &sessionID
	}

	if err := h.recorder.Append(r.Context(), event); err != nil {
		h.logger.Error("failed to record block reset", slog.Any("error", err))
		pkghttp.WriteJSON(w, http.StatusInternalServerError, ResetBlocksResponse{
			Message: "Blocks were reset but the event could not be recorded",
			Cleared: cleared,
		})
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, ResetBlocksResponse{
		Success: true,
		Message: "All blocks reset successfully",
		Cleared: cleared,
	})
}

// Stats handles GET /stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, h.tracker.Stats())
}
