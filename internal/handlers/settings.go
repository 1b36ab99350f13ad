package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/loginguard/internal/middleware"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/services"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
)

// SettingsManager reads and updates the security settings
type SettingsManager interface {
	Snapshot() models.SecuritySettings
	Update(ctx context.Context, patch map[string]any, meta services.RequestMeta) (models.SecuritySettings, []string, error)
}

type SettingsHandler struct {
	settings SettingsManager
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

func NewSettingsHandler(settings SettingsManager, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, ipConfig: ipConfig, logger: logger}
}

// UpdateSettingsResponse is returned by POST /settings
type UpdateSettingsResponse struct {
	Success  bool                     `json:"success"`
	Message  string                   `json:"message"`
	Settings *models.SecuritySettings `json:"settings,omitempty"`
	Ignored  []string                 `json:"ignored,omitempty"`
}

// Get handles GET /settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, h.settings.Snapshot())
}

// Update handles POST /settings. The body is a partial settings document;
// unknown keys and values of the wrong type are reported back, not applied.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if err := pkghttp.DecodeJSON(w, r, &patch); err != nil || patch == nil {
		pkghttp.WriteJSON(w, http.StatusBadRequest, UpdateSettingsResponse{Message: "Invalid settings document"})
		return
	}

	meta := services.RequestMeta{
		SessionID: middleware.SessionIDFromContext(r.Context()),
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
	}

	updated, ignored, err := h.settings.Update(r.Context(), patch, meta)
	if err != nil {
		pkghttp.WriteJSON(w, http.StatusInternalServerError, UpdateSettingsResponse{Message: "Failed to save settings"})
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, UpdateSettingsResponse{
		Success:  true,
		Message:  "Settings updated successfully",
		Settings: &updated,
		Ignored:  ignored,
	})
}
