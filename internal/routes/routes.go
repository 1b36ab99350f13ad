package routes

import (
	"log/slog"
	"time"

	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/BradenHooton/loginguard/internal/handlers"
	"github.com/BradenHooton/loginguard/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes
type Handlers struct {
	Auth     *handlers.AuthHandler
	Settings *handlers.SettingsHandler
	Admin    *handlers.AdminHandler
	Users    *handlers.UserHandler
	Logs     *handlers.LogsHandler
	Health   *handlers.HealthHandler
	Events   *handlers.EventsWSHandler
	Session  *handlers.SessionHandler
}

// Config carries the middleware settings the routes need
type Config struct {
	Tokens         *auth.TokenManager
	Cookies        auth.CookieConfig
	LoginFlood     middleware.RateLimitConfig
	Admin          middleware.AdminConfig
	RequestTimeout time.Duration
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, h Handlers, cfg Config, logger *slog.Logger) {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	requireAdmin := middleware.RequireAdminKey(cfg.Admin, logger)

	router.Get("/health", h.Health.Health)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Session(cfg.Cookies))

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(cfg.RequestTimeout))

			r.With(middleware.RateLimitByIP(cfg.LoginFlood)).Post("/login", h.Auth.Login)
			r.Get("/captcha", h.Auth.Captcha)
			r.Get("/settings", h.Settings.Get)
			r.Post("/logout", h.Session.Logout)
			r.With(auth.RequireSessionToken(cfg.Tokens)).Get("/session", h.Session.Current)

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Post("/settings", h.Settings.Update)
				r.Post("/reset-blocks", h.Admin.ResetBlocks)
				r.Get("/stats", h.Admin.Stats)
				r.Get("/logs", h.Logs.List)
				r.Post("/users", h.Users.Create)
			})
		})

		// The stream hijacks the connection, so it stays outside Timeout.
		r.With(requireAdmin).Get("/ws/logs", h.Events.Stream)
	})
}
