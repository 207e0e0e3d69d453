package perf

import (
	"strings"
	"sync"
	"time"
)

type throttleKey struct {
	conn  string
	event string
}

// Throttler suppresses emissions for a (connection, event) key arriving
// faster than a configured delay. Pure frequency limiting: intermediate
// calls are dropped, not queued.
type Throttler struct {
	mu   sync.Mutex
	last map[throttleKey]time.Time
	now  func() time.Time
}

// NewThrottler builds an empty throttler.
func NewThrottler() *Throttler {
	return &Throttler{
		last: make(map[throttleKey]time.Time),
		now:  time.Now,
	}
}

// Allow reports whether an emission for the key may go out, recording the
// timestamp when it does.
func (t *Throttler) Allow(conn, event string, delay time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := throttleKey{conn: conn, event: event}
	now := t.now()
	if last, ok := t.last[key]; ok && now.Sub(last) < delay {
		return false
	}
	t.last[key] = now
	return true
}

// Forget drops every key belonging to the connection. Called on disconnect
// so per-connection state cannot leak.
func (t *Throttler) Forget(conn string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.last {
		if key.conn == conn {
			delete(t.last, key)
		}
	}
}

// ForgetEvent drops keys for one event name across all connections.
func (t *Throttler) ForgetEvent(event string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.last {
		if strings.EqualFold(key.event, event) {
			delete(t.last, key)
		}
	}
}

// Len reports how many keys are tracked.
func (t *Throttler) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.last)
}
