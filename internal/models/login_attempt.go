package models

import "time"

// AttemptOutcome is the result of a credential check fed to the abuse tracker.
type AttemptOutcome int

const (
	AttemptFailure AttemptOutcome = iota
	AttemptSuccess
)

// LoginAttemptRecord is the per-username failure counter and the start of its window.
type LoginAttemptRecord struct {
	Count       int
	WindowStart time.Time
}

// Expired reports whether the window has elapsed at now.
func (r LoginAttemptRecord) Expired(now time.Time, window time.Duration) bool {
	return now.Sub(r.WindowStart) > window
}

// AttemptState is a snapshot of a username's counter as seen by one request.
type AttemptState struct {
	Username    string
	Count       int
	WindowStart time.Time
}

// BlockedSession records why a session identifier was blocked.
type BlockedSession struct {
	Username  string
	BlockedAt time.Time
}

// TrackerStats summarizes abuse tracker contents
type TrackerStats struct {
	TrackedUsernames int `json:"tracked_usernames"`
	BlockedSessions  int `json:"blocked_sessions"`
}
