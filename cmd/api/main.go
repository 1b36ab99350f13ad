package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/BradenHooton/loginguard/internal/background"
	"github.com/BradenHooton/loginguard/internal/config"
	"github.com/BradenHooton/loginguard/internal/database"
	"github.com/BradenHooton/loginguard/internal/events"
	"github.com/BradenHooton/loginguard/internal/handlers"
	middlewareCustom "github.com/BradenHooton/loginguard/internal/middleware"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/repositories"
	"github.com/BradenHooton/loginguard/internal/routes"
	"github.com/BradenHooton/loginguard/internal/services"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
	pkglogger "github.com/BradenHooton/loginguard/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	level.Set(parseLevel(cfg.Server.LogLevel))

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("event_store", cfg.Events.Store))

	production := cfg.Server.Env == "production"

	ipConfig, err := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Error("invalid TRUSTED_PROXIES", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize database
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := database.NewConnection(startupCtx, &cfg.Database, logger)
	if err != nil {
		startupCancel()
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(startupCtx); err != nil {
		startupCancel()
		logger.Error("failed to apply migrations", slog.Any("error", err))
		os.Exit(1)
	}
	startupCancel()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	eventRepo := repositories.NewSecurityEventRepository(db)
	settingsRepo := repositories.NewSettingsFileRepository(cfg.Auth.SettingsFile, logger)

	// Event log: the configured store is authoritative, the other one mirrors
	fileSink := events.NewFileSink(events.FileSinkConfig{
		Path:       cfg.Events.LogFile,
		MaxSizeMB:  cfg.Events.MaxSizeMB,
		MaxBackups: cfg.Events.MaxBackups,
		MaxAgeDays: cfg.Events.MaxAgeDays,
	})
	defer fileSink.Close()

	var (
		primary events.Sink   = eventRepo
		reader  events.Reader = eventRepo
		mirror  events.Sink   = fileSink
		purger  background.EventPurger
	)
	purger = eventRepo
	if cfg.Events.Store == "file" {
		primary, reader, mirror = fileSink, fileSink, eventRepo
		purger = nil
	}

	hub := events.NewHub(cfg.Events.QueueSize, cfg.Events.SubscriberBuffer, logger)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go hub.Run(hubCtx)

	auditLogger := pkglogger.NewAuditLogger(logger, cfg.Server.Env)
	eventLog := events.NewLog(primary, reader, hub, auditLogger, logger, mirror)

	// Initialize services
	settingsCtx, settingsCancel := context.WithTimeout(context.Background(), 5*time.Second)
	settingsService := services.NewSettingsService(settingsCtx, settingsRepo, eventLog, logger)
	settingsCancel()

	tracker := services.NewAbuseTracker(logger)

	logSender := services.NewLogOTPSender(logger)
	senders := map[string]services.OTPSender{models.TwoFactorMethodLog: logSender}
	if cfg.Auth.EmailFromAddress != "" {
		sesCtx, sesCancel := context.WithTimeout(context.Background(), 10*time.Second)
		sesSender, err := services.NewSESOTPSender(sesCtx, cfg.Auth.AWSRegion, cfg.Auth.EmailFromAddress, cfg.Auth.OTPTTL, logger)
		sesCancel()
		if err != nil {
			logger.Error("failed to initialize email sender", slog.Any("error", err))
			os.Exit(1)
		}
		senders[models.TwoFactorMethodEmail] = sesSender
	} else {
		logger.Warn("EMAIL_FROM_ADDRESS not set, verification codes are written to the server log")
	}

	challenges := services.NewChallengeService(tracker, senders, logSender, services.ChallengeConfig{
		OTPTTL:             cfg.Auth.OTPTTL,
		CaptchaTTL:         cfg.Auth.CaptchaTTL,
		AllowClientCaptcha: cfg.Auth.AllowClientCaptcha,
	}, logger)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		Base:   cfg.Auth.TimingDelayBase,
		Jitter: cfg.Auth.TimingDelayRandom,
	})

	loginService := services.NewLoginService(userRepo, tracker, challenges, settingsService, eventLog, tokenManager, timingDelay, logger)
	userService := services.NewUserService(userRepo, settingsService, logger)

	if cfg.Auth.SeedDemoUsers {
		seedCtx, seedCancel := context.WithTimeout(context.Background(), 10*time.Second)
		seeded, err := userService.SeedDemoUsers(seedCtx)
		seedCancel()
		if err != nil {
			logger.Error("failed to seed demo users", slog.Any("error", err))
		} else if seeded > 0 {
			logger.Info("demo users created", slog.Int("count", seeded))
		}
	}

	cookies := auth.CookieConfig{Secure: production, SameSite: "strict"}

	// Initialize handlers
	h := routes.Handlers{
		Auth:     handlers.NewAuthHandler(loginService, challenges, settingsService, cookies, ipConfig, logger),
		Settings: handlers.NewSettingsHandler(settingsService, ipConfig, logger),
		Admin:    handlers.NewAdminHandler(tracker, eventLog, ipConfig, logger),
		Users:    handlers.NewUserHandler(userService, logger),
		Logs:     handlers.NewLogsHandler(eventLog, logger),
		Health:   handlers.NewHealthHandler(db, logger),
		Events:   handlers.NewEventsWSHandler(hub, eventLog, handlers.DefaultWSConfig(cfg.Server.AllowedOrigins), ipConfig, logger),
		Session:  handlers.NewSessionHandler(cookies, logger),
	}

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)

	routes.RegisterRoutes(router, h, routes.Config{
		Tokens:  tokenManager,
		Cookies: cookies,
		LoginFlood: middlewareCustom.RateLimitConfig{
			RequestsPerMinute: cfg.Server.LoginFloodPerMinute,
			IPConfig:          ipConfig,
		},
		Admin: middlewareCustom.AdminConfig{
			Key:        cfg.Auth.AdminAPIKey,
			Production: production,
			IPConfig:   ipConfig,
		},
		RequestTimeout: 60 * time.Second,
	}, logger)

	if cfg.Auth.AdminAPIKey == "" {
		logger.Warn("ADMIN_API_KEY not set, admin routes are open")
	}

	// Create server. The event stream manages its own deadlines after upgrade.
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupManager := background.NewCleanupManager(
		tracker,
		func() time.Duration { return settingsService.Snapshot().RateLimiting.Window() },
		challenges,
		purger,
		background.CleanupConfig{Interval: cfg.Auth.CleanupInterval, Retention: cfg.Events.Retention},
		logger,
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	}
	hubCancel()

	logger.Info("server stopped gracefully",
		slog.Uint64("events_dropped", hub.Dropped()))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
