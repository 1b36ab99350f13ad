package auth

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig holds configuration for timing attack prevention
type TimingConfig struct {
	Base   time.Duration
	Jitter time.Duration
}

// TimingDelay pads credential failures so that an unknown username and a
// wrong password take approximately the same time.
type TimingDelay struct {
	config TimingConfig
}

// NewTimingDelay creates a new TimingDelay instance
func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{
		config: config,
	}
}

// cryptoRandIntn returns a secure random number in [0, max)
func cryptoRandIntn(max int64) int64 {
	if max <= 0 {
		return 0
	}

	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(randomBytes) % uint64(max))
}

// Target returns base plus a random jitter.
func (td *TimingDelay) Target() time.Duration {
	return td.config.Base + time.Duration(cryptoRandIntn(int64(td.config.Jitter)))
}

// WaitFrom sleeps until at least Target() has elapsed since start, or ctx is done.
func (td *TimingDelay) WaitFrom(ctx context.Context, start time.Time) {
	remaining := td.Target() - time.Since(start)
	if remaining <= 0 {
		return
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
