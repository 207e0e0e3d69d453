package http

import "time"

// rateLimiter bounds how many frames one connection may push per minute.
// The window resets lazily on the next call after it elapses, so no
// background goroutine is needed. A limit of zero disables the check.
type rateLimiter struct {
	limit       int
	window      time.Duration
	count       int
	windowStart time.Time
	now         func() time.Time
}

func newRateLimiter(limit int) *rateLimiter {
	return &rateLimiter{
		limit:  limit,
		window: time.Minute,
		now:    time.Now,
	}
}

// allow reports whether one more frame fits inside the current window.
// Callers invoke it from the connection's read loop only.
func (r *rateLimiter) allow() bool {
	if r == nil || r.limit <= 0 {
		return true
	}

	now := r.now()
	if r.windowStart.IsZero() || now.Sub(r.windowStart) >= r.window {
		r.windowStart = now
		r.count = 0
	}

	r.count++
	return r.count <= r.limit
}
