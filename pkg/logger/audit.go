package logger

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
)

// AuditLogger mirrors security events into the structured application log
type AuditLogger struct {
	logger *slog.Logger
	env    string
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger, env string) *AuditLogger {
	return &AuditLogger{
		logger: logger,
		env:    env,
	}
}

func levelFor(category string) slog.Level {
	switch category {
	case models.EventSuccessfulLogin, models.EventSettings, models.EventSecurity, models.EventTwoFactor:
		return slog.LevelInfo
	case models.EventServerError:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// LogSecurityEvent writes one security event as a structured record
func (al *AuditLogger) LogSecurityEvent(ctx context.Context, event models.SecurityEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "security"),
		slog.String("category", event.Category),
		slog.String("event_id", event.ID.String()),
		slog.String("timestamp", event.CreatedAt.UTC().Format(time.RFC3339)),
	}

	if event.Username != nil {
		attrs = append(attrs, UsernameAttr(*event.Username, al.env))
	}
	if event.IPAddress != nil {
		attrs = append(attrs, slog.String("ip_address", *event.IPAddress))
	}
	if event.SessionID != nil {
		attrs = append(attrs, RedactedAttr("session_id", *event.SessionID, al.env))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.Any(key, val))
	}

	al.logger.LogAttrs(ctx, levelFor(event.Category), event.Message, attrs...)
}
