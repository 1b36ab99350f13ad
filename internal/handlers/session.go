package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/loginguard/internal/auth"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
)

// SessionHandler reports and ends the session established by a login
type SessionHandler struct {
	cookies auth.CookieConfig
	logger  *slog.Logger
}

func NewSessionHandler(cookies auth.CookieConfig, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{cookies: cookies, logger: logger}
}

type SessionResponse struct {
	Authenticated bool      `json:"authenticated"`
	Username      string    `json:"username"`
	RememberMe    bool      `json:"remember_me"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type LogoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Current handles GET /session behind auth.RequireSessionToken
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r.Context())
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Not logged in")
		return
	}

	resp := SessionResponse{
		Authenticated: true,
		Username:      claims.Username,
		RememberMe:    claims.RememberMe,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Logout handles POST /logout. It always succeeds.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionTokenCookie(w, h.cookies)
	pkghttp.WriteJSON(w, http.StatusOK, LogoutResponse{Success: true, Message: "Logged out"})
}
