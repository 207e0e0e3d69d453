package perf

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid repeated calls per (connection, event) key into
// one trailing emission after a quiet period.
type Debouncer struct {
	mu     sync.Mutex
	timers map[throttleKey]*time.Timer
}

// NewDebouncer builds an empty debouncer.
func NewDebouncer() *Debouncer {
	return &Debouncer{timers: make(map[throttleKey]*time.Timer)}
}

// Debounce cancels any pending emission for the key and schedules fn after
// the quiet period. Only the last call within the window fires.
func (d *Debouncer) Debounce(conn, event string, quiet time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := throttleKey{conn: conn, event: event}
	if timer, ok := d.timers[key]; ok {
		timer.Stop()
	}
	d.timers[key] = time.AfterFunc(quiet, func() {
		d.mu.Lock()
		delete(d.timers, key)
		d.mu.Unlock()
		fn()
	})
}

// Cancel stops a pending emission for the key, if any.
func (d *Debouncer) Cancel(conn, event string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := throttleKey{conn: conn, event: event}
	timer, ok := d.timers[key]
	if !ok {
		return false
	}
	timer.Stop()
	delete(d.timers, key)
	return true
}

// CancelAll stops every pending emission for the connection. Called on
// disconnect.
func (d *Debouncer) CancelAll(conn string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, timer := range d.timers {
		if key.conn == conn {
			timer.Stop()
			delete(d.timers, key)
		}
	}
}

// Stop cancels everything. Used at shutdown.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, timer := range d.timers {
		timer.Stop()
		delete(d.timers, key)
	}
}

// Pending reports how many emissions are scheduled.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}
