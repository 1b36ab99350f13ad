package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/loginguard/internal/models"
	pkglogger "github.com/BradenHooton/loginguard/pkg/logger"
)

type memorySink struct {
	mu     sync.Mutex
	events []models.SecurityEvent
	err    error
}

func (m *memorySink) Write(_ context.Context, e models.SecurityEvent) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memorySink) Recent(_ context.Context, categories []string, limit int) ([]models.SecurityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	allowed := map[string]bool{}
	for _, c := range categories {
		allowed[c] = true
	}
	var out []models.SecurityEvent
	for _, e := range m.events {
		if allowed[e.Category] {
			out = append(out, e)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func newTestLog(primary *memorySink, hub *Hub, mirrors ...Sink) *Log {
	return NewLog(primary, primary, hub, pkglogger.NewAuditLogger(discardLogger(), "development"), discardLogger(), mirrors...)
}

func TestLog_AppendStampsAndPublishes(t *testing.T) {
	hub := startHub(t, 8, 8)
	sub := hub.Subscribe()
	primary := &memorySink{}
	log := newTestLog(primary, hub)

	require.NoError(t, log.Append(context.Background(), models.SecurityEvent{Category: models.EventSuccessfulLogin, Message: "ok"}))

	require.Len(t, primary.events, 1)
	assert.NotEqual(t, uuid.Nil, primary.events[0].ID)
	assert.False(t, primary.events[0].CreatedAt.IsZero())

	got := receive(t, sub)
	assert.Equal(t, primary.events[0].ID, got.ID)
}

func TestLog_PrimaryFailureIsReturnedAndNotBroadcast(t *testing.T) {
	hub := startHub(t, 8, 8)
	sub := hub.Subscribe()
	log := newTestLog(&memorySink{err: errors.New("disk full")}, hub)

	err := log.Append(context.Background(), models.SecurityEvent{Category: models.EventFailedLogin})
	assert.Error(t, err)

	select {
	case <-sub.Events():
		t.Fatal("unrecorded event was broadcast")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLog_MirrorFailureIsIgnored(t *testing.T) {
	primary := &memorySink{}
	log := newTestLog(primary, nil, &memorySink{err: errors.New("db down")})

	assert.NoError(t, log.Append(context.Background(), models.SecurityEvent{Category: models.EventFailedLogin}))
	assert.Len(t, primary.events, 1)
}

func TestLog_RecentFiltersCategories(t *testing.T) {
	primary := &memorySink{}
	log := newTestLog(primary, nil)
	ctx := context.Background()

	for _, c := range []string{models.EventTwoFactor, models.EventFailedLogin, models.EventSecurity, models.EventSettings, models.EventFailedCaptcha} {
		require.NoError(t, log.Append(ctx, models.SecurityEvent{Category: c}))
	}

	events, err := log.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.EventFailedLogin, events[0].Category)
	assert.Equal(t, models.EventSettings, events[1].Category)
}
