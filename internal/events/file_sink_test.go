package events

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/loginguard/internal/models"
)

func TestFileSink_WriteAndRecent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "security.log")
	sink := NewFileSink(FileSinkConfig{Path: path})
	t.Cleanup(func() { sink.Close() })
	ctx := context.Background()

	ip := "192.0.2.1"
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		category := models.EventFailedLogin
		if i%2 == 1 {
			category = models.EventTwoFactor
		}
		require.NoError(t, sink.Write(ctx, models.SecurityEvent{
			ID:        uuid.New(),
			Category:  category,
			Message:   fmt.Sprintf("event %d", i),
			IPAddress: &ip,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	events, err := sink.Recent(ctx, []string{models.EventFailedLogin}, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "event 2", events[0].Message)
	assert.Equal(t, "event 4", events[1].Message)
	assert.Equal(t, ip, *events[1].IPAddress)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"line":"[2024-05-01 09:00:00] [IP: 192.0.2.1] [FAILED LOGIN] event 0"`)
	assert.Equal(t, 6, strings.Count(string(data), "\n"))
}

func TestFileSink_RecentMissingFile(t *testing.T) {
	sink := NewFileSink(FileSinkConfig{Path: filepath.Join(t.TempDir(), "none.log")})

	events, err := sink.Recent(context.Background(), models.VisibleCategories, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
