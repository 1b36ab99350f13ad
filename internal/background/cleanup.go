package background

import (
	"context"
	"log/slog"
	"time"
)

// WindowPurger drops abuse counters whose window has elapsed
type WindowPurger interface {
	PurgeExpired(window time.Duration) int
}

// ChallengePurger drops expired CAPTCHA and OTP challenges
type ChallengePurger interface {
	PurgeExpired() int
}

// EventPurger deletes stored security events older than cutoff
type EventPurger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// WindowSource reports the current rate limiting window
type WindowSource func() time.Duration

// CleanupConfig holds the cleanup schedule
type CleanupConfig struct {
	Interval  time.Duration
	Retention time.Duration
}

// CleanupManager periodically evicts stale in-memory state and expired events
type CleanupManager struct {
	tracker    WindowPurger
	window     WindowSource
	challenges ChallengePurger
	events     EventPurger
	config     CleanupConfig
	logger     *slog.Logger
	nowFunc    func() time.Time
	stopCh     chan struct{}
}

// NewCleanupManager creates a new cleanup manager. events may be nil when
// events are not kept in the database.
func NewCleanupManager(
	tracker WindowPurger,
	window WindowSource,
	challenges ChallengePurger,
	events EventPurger,
	config CleanupConfig,
	logger *slog.Logger,
) *CleanupManager {
	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}
	return &CleanupManager{
		tracker:    tracker,
		window:     window,
		challenges: challenges,
		events:     events,
		config:     config,
		logger:     logger,
		nowFunc:    time.Now,
		stopCh:     make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.config.Interval)
	defer ticker.Stop()

	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	counters := cm.tracker.PurgeExpired(cm.window())
	challenges := cm.challenges.PurgeExpired()

	var rowsDeleted int64
	if cm.events != nil && cm.config.Retention > 0 {
		cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		var err error
		rowsDeleted, err = cm.events.DeleteOlderThan(cleanupCtx, cm.nowFunc().Add(-cm.config.Retention))
		if err != nil {
			cm.logger.Error("failed to delete expired security events", slog.Any("error", err))
		}
	}

	if counters > 0 || challenges > 0 || rowsDeleted > 0 {
		cm.logger.Info("cleanup completed",
			slog.Int("counters_purged", counters),
			slog.Int("challenges_purged", challenges),
			slog.Int64("events_deleted", rowsDeleted))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
