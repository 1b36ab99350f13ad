package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Events   EventsConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	// LoginFloodPerMinute bounds raw POST /login volume per client IP.
	LoginFloodPerMinute int
}

type AuthConfig struct {
	JWTSecret          string
	AdminAPIKey        string
	SettingsFile       string
	AllowClientCaptcha bool
	OTPTTL             time.Duration
	CaptchaTTL         time.Duration
	TimingDelayBase    time.Duration
	TimingDelayRandom  time.Duration
	CleanupInterval    time.Duration
	SeedDemoUsers      bool
	EmailFromAddress   string
	AWSRegion          string
}

type EventsConfig struct {
	// Store selects the durable event store: "file" or "database".
	Store            string
	LogFile          string
	MaxSizeMB        int
	MaxBackups       int
	MaxAgeDays       int
	Retention        time.Duration
	QueueSize        int
	SubscriberBuffer int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "loginguard"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:                getEnv("PORT", "8080"),
			Env:                 env,
			LogLevel:            getEnv("LOG_LEVEL", "info"),
			AllowedOrigins:      parseAllowedOrigins(env),
			TrustedProxies:      parseList(getEnv("TRUSTED_PROXIES", "")),
			ReadTimeout:         getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:        getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:         getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			LoginFloodPerMinute: getEnvAsInt("LOGIN_FLOOD_PER_MINUTE", 60),
		},
		Auth: AuthConfig{
			JWTSecret:          jwtSecret,
			AdminAPIKey:        getEnv("ADMIN_API_KEY", ""),
			SettingsFile:       getEnv("SETTINGS_FILE", "security_settings.json"),
			AllowClientCaptcha: getEnvAsBool("ALLOW_CLIENT_CAPTCHA", false),
			OTPTTL:             getEnvAsDuration("OTP_TTL", 5*time.Minute),
			CaptchaTTL:         getEnvAsDuration("CAPTCHA_TTL", 5*time.Minute),
			TimingDelayBase:    time.Duration(getEnvAsInt("TIMING_DELAY_BASE_MS", 500)) * time.Millisecond,
			TimingDelayRandom:  time.Duration(getEnvAsInt("TIMING_DELAY_RANDOM_MS", 100)) * time.Millisecond,
			CleanupInterval:    getEnvAsDuration("CLEANUP_INTERVAL", 5*time.Minute),
			SeedDemoUsers:      getEnvAsBool("SEED_DEMO_USERS", env != "production"),
			EmailFromAddress:   getEnv("EMAIL_FROM_ADDRESS", ""),
			AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		},
		Events: EventsConfig{
			Store:            getEnv("EVENT_STORE", "database"),
			LogFile:          getEnv("EVENT_LOG_FILE", "security.log"),
			MaxSizeMB:        getEnvAsInt("EVENT_LOG_MAX_SIZE_MB", 10),
			MaxBackups:       getEnvAsInt("EVENT_LOG_MAX_BACKUPS", 3),
			MaxAgeDays:       getEnvAsInt("EVENT_LOG_MAX_AGE_DAYS", 30),
			Retention:        getEnvAsDuration("EVENT_RETENTION", 30*24*time.Hour),
			QueueSize:        getEnvAsInt("EVENT_QUEUE_SIZE", 256),
			SubscriberBuffer: getEnvAsInt("EVENT_SUBSCRIBER_BUFFER", 64),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	switch cfg.Events.Store {
	case "file", "database":
	default:
		return nil, fmt.Errorf("EVENT_STORE must be \"file\" or \"database\" (got %q)", cfg.Events.Store)
	}

	if env == "production" && cfg.Auth.AdminAPIKey == "" {
		return nil, fmt.Errorf("ADMIN_API_KEY is required in production")
	}

	return cfg, nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseList(raw string) []string {
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return parseList(getEnv("ALLOWED_ORIGINS", ""))
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:5000",
		"http://localhost:8080",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
