package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/BradenHooton/loginguard/internal/auth"
)

func TestTimingDelay_WaitFrom_PadsToTarget(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{Base: 100 * time.Millisecond, Jitter: 50 * time.Millisecond})
	start := time.Now()

	timing.WaitFrom(context.Background(), start)

	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 300*time.Millisecond)
}

func TestTimingDelay_WaitFrom_AlreadyElapsed(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{Base: 50 * time.Millisecond})
	start := time.Now().Add(-time.Second)

	before := time.Now()
	timing.WaitFrom(context.Background(), start)

	assert.Less(t, time.Since(before), 10*time.Millisecond)
}

func TestTimingDelay_WaitFrom_ContextCancelled(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{Base: 5 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	before := time.Now()
	timing.WaitFrom(ctx, before)

	assert.Less(t, time.Since(before), 100*time.Millisecond)
}

func TestTimingDelay_Target_WithinJitter(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{Base: 10 * time.Millisecond, Jitter: 5 * time.Millisecond})

	for i := 0; i < 20; i++ {
		d := timing.Target()
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.Less(t, d, 15*time.Millisecond)
	}
}
