package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/BradenHooton/loginguard/internal/middleware"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/services"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
)

// LoginProcessor makes the login decision
type LoginProcessor interface {
	Login(ctx context.Context, in models.LoginInput) (*models.LoginResult, error)
}

// CaptchaIssuer hands out server-held CAPTCHA questions
type CaptchaIssuer interface {
	IssueCaptcha(sessionID string) (string, error)
}

// SettingsReader exposes the live security settings
type SettingsReader interface {
	Snapshot() models.SecuritySettings
}

// AuthHandler serves the login form endpoints
type AuthHandler struct {
	login    LoginProcessor
	captcha  CaptchaIssuer
	settings SettingsReader
	cookies  auth.CookieConfig
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(login LoginProcessor, captcha CaptchaIssuer, settings SettingsReader, cookies auth.CookieConfig, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		login:    login,
		captcha:  captcha,
		settings: settings,
		cookies:  cookies,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// LoginRequest represents the request body for login. Presence and length of
// username and password are checked by the login pipeline after injection
// screening, so the response carries its message.
type LoginRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	Captcha         string `json:"captcha" validate:"max=32"`
	ExpectedCaptcha string `json:"expected_captcha" validate:"max=32"`
	OTP             string `json:"otp" validate:"max=32"`
	RememberMe      bool   `json:"remember_me"`
}

// CaptchaResponse carries a CAPTCHA question for the current session
type CaptchaResponse struct {
	Question string `json:"question"`
	Enabled  bool   `json:"enabled"`
}

// loginStatus maps a login decision to its HTTP status
func loginStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrInjectionDetected):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrBadCaptcha),
		errors.Is(err, models.ErrInvalidCredentials),
		errors.Is(err, models.ErrInvalidOTP):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrSessionBlocked):
		return http.StatusForbidden
	case errors.Is(err, models.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Login handles POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := pkghttp.DecodeJSON(w, r, &req); err != nil {
		pkghttp.WriteJSON(w, http.StatusBadRequest, models.LoginResult{Message: "Invalid request body"})
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteJSON(w, http.StatusBadRequest, models.LoginResult{Message: err.Error()})
		return
	}

	result, err := h.login.Login(r.Context(), models.LoginInput{
		Username:        req.Username,
		Password:        req.Password,
		Captcha:         req.Captcha,
		ExpectedCaptcha: req.ExpectedCaptcha,
		OTP:             req.OTP,
		RememberMe:      req.RememberMe,
		SessionID:       middleware.SessionIDFromContext(r.Context()),
		IPAddress:       pkghttp.ExtractClientIP(r, h.ipConfig),
	})

	status := loginStatus(err)
	if result == nil {
		result = &models.LoginResult{Message: services.MsgServerError}
		status = http.StatusInternalServerError
	}

	if result.Success && result.Token != "" {
		expiry := auth.SessionExpiry(h.settings.Snapshot().Session, req.RememberMe)
		auth.SetSessionTokenCookie(w, result.Token, expiry, h.cookies)
	}

	pkghttp.WriteJSON(w, status, result)
}

// Captcha handles GET /captcha. The question is bound to the caller's
// session and answered through the captcha field of the next login.
func (h *AuthHandler) Captcha(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.SessionIDFromContext(r.Context())
	if sessionID == "" {
		pkghttp.WriteBadRequest(w, "Missing session")
		return
	}

	question, err := h.captcha.IssueCaptcha(sessionID)
	if err != nil {
		h.logger.Error("failed to issue captcha", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, CaptchaResponse{
		Question: question,
		Enabled:  h.settings.Snapshot().Captcha.Enabled,
	})
}
