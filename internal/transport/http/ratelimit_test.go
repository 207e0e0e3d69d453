package http

import (
	"testing"
	"time"
)

func TestRateLimiterEnforcesWindow(t *testing.T) {
	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	clock := base

	r := newRateLimiter(3)
	r.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		if !r.allow() {
			t.Fatalf("frame %d should be within the limit", i+1)
		}
	}
	if r.allow() {
		t.Fatalf("fourth frame in the same window should be refused")
	}

	// still inside the window
	clock = base.Add(30 * time.Second)
	if r.allow() {
		t.Fatalf("frame should stay refused until the window elapses")
	}

	clock = base.Add(61 * time.Second)
	if !r.allow() {
		t.Fatalf("frame should be allowed after the window resets")
	}
}

func TestRateLimiterZeroLimitDisables(t *testing.T) {
	r := newRateLimiter(0)
	for i := 0; i < 100; i++ {
		if !r.allow() {
			t.Fatalf("zero limit must never refuse")
		}
	}
}
