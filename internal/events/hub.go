// Package events appends security events to durable storage and fans them
// out to live observers.
package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/BradenHooton/loginguard/internal/models"
)

// Subscription is one observer's view of the broadcast stream
type Subscription struct {
	ch      chan models.SecurityEvent
	dropped atomic.Uint64
}

// Events returns the channel events are delivered on. It is closed by Unsubscribe.
func (s *Subscription) Events() <-chan models.SecurityEvent {
	return s.ch
}

// Dropped counts events skipped because this subscriber was not keeping up.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Hub decouples event publication from delivery. Publish never blocks: it
// enqueues into a bounded queue, and a single dispatcher goroutine fans out
// to subscribers with non-blocking sends.
type Hub struct {
	queue      chan models.SecurityEvent
	mu         sync.RWMutex
	subs       map[*Subscription]struct{}
	bufferSize int
	dropped    atomic.Uint64
	logger     *slog.Logger
}

// NewHub creates a hub. Run must be started for events to be delivered.
func NewHub(queueSize, subscriberBuffer int, logger *slog.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = 256
	}
	if subscriberBuffer <= 0 {
		subscriberBuffer = 64
	}
	return &Hub{
		queue:      make(chan models.SecurityEvent, queueSize),
		subs:       make(map[*Subscription]struct{}),
		bufferSize: subscriberBuffer,
		logger:     logger,
	}
}

// Run dispatches queued events until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case event := <-h.queue:
			h.dispatch(event)
		case <-ctx.Done():
			h.logger.Info("event hub stopped", slog.Uint64("dropped", h.dropped.Load()))
			return
		}
	}
}

func (h *Hub) dispatch(event models.SecurityEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		select {
		case sub.ch <- event:
		default:
			sub.dropped.Add(1)
		}
	}
}

// Publish enqueues event for broadcast. When the queue is full the event is
// dropped from the broadcast and false is returned.
func (h *Hub) Publish(event models.SecurityEvent) bool {
	select {
	case h.queue <- event:
		return true
	default:
		if n := h.dropped.Add(1); n == 1 || n%100 == 0 {
			h.logger.Warn("event broadcast queue full, dropping events", slog.Uint64("dropped", n))
		}
		return false
	}
}

// Subscribe registers a new observer
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{ch: make(chan models.SecurityEvent, h.bufferSize)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

// Unsubscribe removes the observer and closes its channel
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.ch)
	}
}

// SubscriberCount returns the number of registered observers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many events never entered the broadcast queue.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}
