package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/BradenHooton/loginguard/internal/database"
	"github.com/BradenHooton/loginguard/internal/events"
	"github.com/BradenHooton/loginguard/internal/handlers"
	middlewareCustom "github.com/BradenHooton/loginguard/internal/middleware"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/repositories"
	"github.com/BradenHooton/loginguard/internal/routes"
	"github.com/BradenHooton/loginguard/internal/services"
	pkglogger "github.com/BradenHooton/loginguard/pkg/logger"
)

// TestServer wraps httptest.Server with database and all dependencies
type TestServer struct {
	Server *httptest.Server
	DB     *database.DB
	Client *http.Client

	// Dependency references for inspection in tests
	OTP      *services.MockOTPSender
	Tracker  *services.AbuseTracker
	Hub      *events.Hub
	Settings *services.SettingsService

	settingsDir string
	hubCancel   context.CancelFunc
}

// NewTestServer initializes a complete HTTP server with real database and a
// capturing OTP sender. Events are stored in the database.
func NewTestServer(db *database.DB) (*TestServer, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	settingsDir, err := os.MkdirTemp("", "loginguard-settings-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create settings dir: %w", err)
	}

	userRepo := repositories.NewUserRepository(db)
	eventRepo := repositories.NewSecurityEventRepository(db)
	settingsRepo := repositories.NewSettingsFileRepository(filepath.Join(settingsDir, "security_settings.json"), logger)

	hub := events.NewHub(64, 16, logger)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	go hub.Run(hubCtx)

	eventLog := events.NewLog(eventRepo, eventRepo, hub, pkglogger.NewAuditLogger(logger, "test"), logger)
	settingsService := services.NewSettingsService(context.Background(), settingsRepo, eventLog, logger)
	tracker := services.NewAbuseTracker(logger)

	otp := &services.MockOTPSender{}
	challenges := services.NewChallengeService(tracker,
		map[string]services.OTPSender{models.TwoFactorMethodEmail: otp}, otp,
		services.ChallengeConfig{OTPTTL: 5 * time.Minute, CaptchaTTL: 5 * time.Minute}, logger)

	tokenManager := auth.NewTokenManager("test-secret-32-characters-long-for-testing")
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{Base: 10 * time.Millisecond, Jitter: 5 * time.Millisecond})

	loginService := services.NewLoginService(userRepo, tracker, challenges, settingsService, eventLog, tokenManager, timingDelay, logger)
	userService := services.NewUserService(userRepo, settingsService, logger)

	cookies := auth.CookieConfig{SameSite: "strict"}
	h := routes.Handlers{
		Auth:     handlers.NewAuthHandler(loginService, challenges, settingsService, cookies, nil, logger),
		Settings: handlers.NewSettingsHandler(settingsService, nil, logger),
		Admin:    handlers.NewAdminHandler(tracker, eventLog, nil, logger),
		Users:    handlers.NewUserHandler(userService, logger),
		Logs:     handlers.NewLogsHandler(eventLog, logger),
		Health:   handlers.NewHealthHandler(db, logger),
		Events:   handlers.NewEventsWSHandler(hub, eventLog, handlers.DefaultWSConfig(nil), nil, logger),
		Session:  handlers.NewSessionHandler(cookies, logger),
	}

	// Setup Chi router with middleware
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: "test"}))
	r.Use(chiMiddleware.Recoverer)

	routes.RegisterRoutes(r, h, routes.Config{
		Tokens:     tokenManager,
		Cookies:    cookies,
		LoginFlood: middlewareCustom.RateLimitConfig{RequestsPerMinute: 1000},
		Admin:      middlewareCustom.AdminConfig{Key: AdminKey},
	}, logger)

	jar, err := cookiejar.New(nil)
	if err != nil {
		hubCancel()
		return nil, err
	}

	return &TestServer{
		Server:      httptest.NewServer(r),
		DB:          db,
		Client:      &http.Client{Jar: jar, Timeout: 10 * time.Second},
		OTP:         otp,
		Tracker:     tracker,
		Hub:         hub,
		Settings:    settingsService,
		settingsDir: settingsDir,
		hubCancel:   hubCancel,
	}, nil
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
	if ts.hubCancel != nil {
		ts.hubCancel()
	}
	os.RemoveAll(ts.settingsDir)
}

// Request makes an HTTP request to the test server. The client keeps the
// session cookie between calls.
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return ts.Client.Do(req)
}

// AdminRequest makes a request carrying the admin key
func (ts *TestServer) AdminRequest(method, path string, body interface{}) (*http.Response, error) {
	return ts.Request(method, path, body, map[string]string{middlewareCustom.AdminKeyHeader: AdminKey})
}

// Login posts credentials and decodes the login result
func (ts *TestServer) Login(body map[string]any) (int, models.LoginResult, error) {
	resp, err := ts.Request(http.MethodPost, "/login", body, nil)
	if err != nil {
		return 0, models.LoginResult{}, err
	}
	var result models.LoginResult
	err = ParseJSONResponse(resp, &result)
	return resp.StatusCode, result, err
}

// UpdateSettings posts a partial settings document with the admin key
func (ts *TestServer) UpdateSettings(patch map[string]any) error {
	resp, err := ts.AdminRequest(http.MethodPost, "/settings", patch)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("settings update returned %d", resp.StatusCode)
	}
	return nil
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}
