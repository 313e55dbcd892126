package services

import (
	"sync"
	"time"
)

// DefaultEchoTTL is how long a sent-message id is remembered while waiting
// for the platform to echo it back through the inbound stream.
const DefaultEchoTTL = 60 * time.Second

// SentTracker remembers the platform ids of messages this process sent, so
// the router can tell a bot echo apart from a manual send. Entries expire on
// their own if the echo never arrives.
type SentTracker struct {
	mu     sync.Mutex
	ttl    time.Duration
	timers map[string]*time.Timer
	closed bool
}

// NewSentTracker creates a tracker with the given expiry. Zero means
// DefaultEchoTTL.
func NewSentTracker(ttl time.Duration) *SentTracker {
	if ttl <= 0 {
		ttl = DefaultEchoTTL
	}
	return &SentTracker{
		ttl:    ttl,
		timers: make(map[string]*time.Timer),
	}
}

// Register records a freshly sent message id. Safe to call from the router
// and the timeout sweep concurrently.
func (t *SentTracker) Register(id string) {
	if id == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	if timer, exists := t.timers[id]; exists {
		timer.Stop()
	}
	t.timers[id] = time.AfterFunc(t.ttl, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.timers, id)
	})
}

// Consume reports whether id belongs to a message we sent, removing it so a
// second echo of the same id reads as not-ours.
func (t *SentTracker) Consume(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	timer, exists := t.timers[id]
	if !exists {
		return false
	}
	timer.Stop()
	delete(t.timers, id)
	return true
}

// Close stops all outstanding expiry timers. The tracker rejects new
// registrations afterwards.
func (t *SentTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}
