package services

import (
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
)

// AbuseTracker keeps per-username failure counters and the set of blocked
// sessions. A single mutex guards both maps so the check-and-block step and
// ResetAll are atomic with respect to concurrent logins.
type AbuseTracker struct {
	mu       sync.Mutex
	attempts map[string]models.LoginAttemptRecord
	blocked  map[string]models.BlockedSession
	nowFunc  func() time.Time
	logger   *slog.Logger
}

// NewAbuseTracker creates an empty tracker
func NewAbuseTracker(logger *slog.Logger) *AbuseTracker {
	return &AbuseTracker{
		attempts: make(map[string]models.LoginAttemptRecord),
		blocked:  make(map[string]models.BlockedSession),
		nowFunc:  time.Now,
		logger:   logger,
	}
}

// liveCount returns the username's count, treating an expired window as zero.
// Caller holds t.mu.
func (t *AbuseTracker) liveCount(username string, window time.Duration, now time.Time) (models.LoginAttemptRecord, bool) {
	rec, ok := t.attempts[username]
	if !ok || rec.Expired(now, window) {
		return models.LoginAttemptRecord{}, false
	}
	return rec, true
}

// RecordAttempt updates the counter for username. A failure inside the live
// window increments it; a failure after the window has elapsed starts a new
// window with this attempt counted. A success resets the counter.
func (t *AbuseTracker) RecordAttempt(username string, outcome models.AttemptOutcome, window time.Duration) models.AttemptState {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.nowFunc()

	if outcome == models.AttemptSuccess {
		delete(t.attempts, username)
		return models.AttemptState{Username: username}
	}

	rec, live := t.liveCount(username, window, now)
	if live {
		rec.Count++
	} else {
		rec = models.LoginAttemptRecord{Count: 1, WindowStart: now}
	}
	t.attempts[username] = rec

	return models.AttemptState{Username: username, Count: rec.Count, WindowStart: rec.WindowStart}
}

// Gate decides whether a login may proceed to the credential check. A blocked
// session yields ErrSessionBlocked. A username at or above MaxAttempts within
// the live window yields ErrRateLimitExceeded and blocks the session in the
// same critical section.
func (t *AbuseTracker) Gate(sessionID, username string, policy models.RateLimitSettings) (models.AttemptState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.nowFunc()
	rec, _ := t.liveCount(username, policy.Window(), now)
	state := models.AttemptState{Username: username, Count: rec.Count, WindowStart: rec.WindowStart}

	if sessionID != "" {
		if _, ok := t.blocked[sessionID]; ok {
			return state, models.ErrSessionBlocked
		}
	}

	if rec.Count >= policy.MaxAttempts {
		if sessionID != "" {
			t.blocked[sessionID] = models.BlockedSession{Username: username, BlockedAt: now}
		}
		t.logger.Warn("session blocked after too many attempts",
			slog.Int("failed_attempts", rec.Count),
			slog.Int("max_attempts", policy.MaxAttempts))
		return state, models.ErrRateLimitExceeded
	}

	return state, nil
}

// FailureCount returns the live-window failure count for username.
func (t *AbuseTracker) FailureCount(username string, window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, _ := t.liveCount(username, window, t.nowFunc())
	return rec.Count
}

// IsBlocked reports whether sessionID is in the block set.
func (t *AbuseTracker) IsBlocked(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.blocked[sessionID]
	return ok
}

// ResetAll clears every counter and every blocked session.
func (t *AbuseTracker) ResetAll() models.TrackerStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	cleared := models.TrackerStats{
		TrackedUsernames: len(t.attempts),
		BlockedSessions:  len(t.blocked),
	}
	t.attempts = make(map[string]models.LoginAttemptRecord)
	t.blocked = make(map[string]models.BlockedSession)
	return cleared
}

// PurgeExpired drops counters whose window has elapsed. Blocked sessions are
// kept until ResetAll.
func (t *AbuseTracker) PurgeExpired(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.nowFunc()
	purged := 0
	for username, rec := range t.attempts {
		if rec.Expired(now, window) {
			delete(t.attempts, username)
			purged++
		}
	}
	return purged
}

func (t *AbuseTracker) Stats() models.TrackerStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return models.TrackerStats{
		TrackedUsernames: len(t.attempts),
		BlockedSessions:  len(t.blocked),
	}
}
