package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/BradenHooton/loginguard/internal/models"
	pkglogger "github.com/BradenHooton/loginguard/pkg/logger"
)

const (
	DefaultRecentLimit = 100
	MaxRecentLimit     = 1000
)

// Sink durably stores security events
type Sink interface {
	Write(ctx context.Context, event models.SecurityEvent) error
}

// Reader returns the newest events in the given categories, oldest first
type Reader interface {
	Recent(ctx context.Context, categories []string, limit int) ([]models.SecurityEvent, error)
}

// Log is the security event log. The primary sink must accept every event;
// mirrors are best effort, and broadcast never waits on observers.
type Log struct {
	primary Sink
	mirrors []Sink
	reader  Reader
	hub     *Hub
	audit   *pkglogger.AuditLogger
	nowFunc func() time.Time
	logger  *slog.Logger
}

// NewLog creates a Log writing to primary and reading from reader
func NewLog(primary Sink, reader Reader, hub *Hub, audit *pkglogger.AuditLogger, logger *slog.Logger, mirrors ...Sink) *Log {
	return &Log{
		primary: primary,
		mirrors: mirrors,
		reader:  reader,
		hub:     hub,
		audit:   audit,
		nowFunc: time.Now,
		logger:  logger,
	}
}

// Append stamps the event, writes it to the primary sink and then publishes
// it. An error means the event was not durably recorded.
func (l *Log) Append(ctx context.Context, event models.SecurityEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = l.nowFunc()
	}

	if err := l.primary.Write(ctx, event); err != nil {
		return fmt.Errorf("append security event: %w", err)
	}

	for _, m := range l.mirrors {
		if err := m.Write(ctx, event); err != nil {
			l.logger.Warn("failed to mirror security event",
				slog.String("category", event.Category),
				slog.Any("error", err))
		}
	}

	if l.audit != nil {
		l.audit.LogSecurityEvent(ctx, event)
	}
	if l.hub != nil {
		l.hub.Publish(event)
	}
	return nil
}

// Recent returns up to limit of the newest events in the visible categories,
// oldest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]models.SecurityEvent, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}

	events, err := l.reader.Recent(ctx, models.VisibleCategories, limit)
	if err != nil {
		return nil, fmt.Errorf("read security events: %w", err)
	}
	return events, nil
}

// Hub exposes the broadcast hub for live subscribers
func (l *Log) Hub() *Hub {
	return l.hub
}
