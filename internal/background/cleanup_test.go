package background

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockWindowPurger struct {
	mu      sync.Mutex
	Windows []time.Duration
}

func (m *MockWindowPurger) PurgeExpired(window time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Windows = append(m.Windows, window)
	return 1
}

func (m *MockWindowPurger) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Windows)
}

type MockChallengePurger struct {
	mu    sync.Mutex
	Calls int
}

func (m *MockChallengePurger) PurgeExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	return 0
}

type MockEventPurger struct {
	DeleteFunc func(ctx context.Context, cutoff time.Time) (int64, error)
	Cutoffs    []time.Time
}

func (m *MockEventPurger) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.Cutoffs = append(m.Cutoffs, cutoff)
	if m.DeleteFunc == nil {
		return 0, nil
	}
	return m.DeleteFunc(ctx, cutoff)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedWindow() time.Duration { return 15 * time.Minute }

func TestCleanupManager_RunCleanup(t *testing.T) {
	tracker := &MockWindowPurger{}
	challenges := &MockChallengePurger{}
	events := &MockEventPurger{}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	cm := NewCleanupManager(tracker, fixedWindow, challenges, events,
		CleanupConfig{Interval: time.Minute, Retention: 24 * time.Hour}, discardLogger())
	cm.nowFunc = func() time.Time { return now }

	cm.runCleanup(context.Background())

	assert.Equal(t, []time.Duration{15 * time.Minute}, tracker.Windows)
	assert.Equal(t, 1, challenges.Calls)
	require.Len(t, events.Cutoffs, 1)
	assert.Equal(t, now.Add(-24*time.Hour), events.Cutoffs[0])
}

func TestCleanupManager_EventErrorDoesNotStopInMemoryPurge(t *testing.T) {
	tracker := &MockWindowPurger{}
	challenges := &MockChallengePurger{}
	events := &MockEventPurger{DeleteFunc: func(ctx context.Context, cutoff time.Time) (int64, error) {
		return 0, errors.New("connection refused")
	}}

	cm := NewCleanupManager(tracker, fixedWindow, challenges, events,
		CleanupConfig{Interval: time.Minute, Retention: time.Hour}, discardLogger())
	cm.runCleanup(context.Background())

	assert.Equal(t, 1, tracker.calls())
	assert.Equal(t, 1, challenges.Calls)
}

func TestCleanupManager_NoEventStore(t *testing.T) {
	tracker := &MockWindowPurger{}
	challenges := &MockChallengePurger{}

	cm := NewCleanupManager(tracker, fixedWindow, challenges, nil,
		CleanupConfig{Interval: time.Minute, Retention: time.Hour}, discardLogger())

	assert.NotPanics(t, func() { cm.runCleanup(context.Background()) })
	assert.Equal(t, 1, tracker.calls())
}

func TestCleanupManager_StartRunsImmediatelyAndStops(t *testing.T) {
	tracker := &MockWindowPurger{}
	cm := NewCleanupManager(tracker, fixedWindow, &MockChallengePurger{}, nil,
		CleanupConfig{Interval: time.Hour}, discardLogger())

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool { return tracker.calls() == 1 }, time.Second, 10*time.Millisecond)
	cm.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not stop")
	}
}

func TestCleanupManager_StopsOnContextCancel(t *testing.T) {
	cm := NewCleanupManager(&MockWindowPurger{}, fixedWindow, &MockChallengePurger{}, nil,
		CleanupConfig{Interval: time.Hour}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager ignored context cancellation")
	}
}
