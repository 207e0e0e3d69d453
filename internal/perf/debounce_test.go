package perf

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerTrailingEdge(t *testing.T) {
	d := NewDebouncer()
	defer d.Stop()

	var fired atomic.Int32
	var last atomic.Int32
	for i := 1; i <= 5; i++ {
		n := int32(i)
		d.Debounce("c1", "presence", 50*time.Millisecond, func() {
			fired.Add(1)
			last.Store(n)
		})
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(150 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("expected one trailing emission, got %d", got)
	}
	if got := last.Load(); got != 5 {
		t.Fatalf("expected last call to win, got call %d", got)
	}
}

func TestDebouncerCancel(t *testing.T) {
	d := NewDebouncer()
	defer d.Stop()

	var fired atomic.Int32
	d.Debounce("c1", "presence", 50*time.Millisecond, func() { fired.Add(1) })
	if !d.Cancel("c1", "presence") {
		t.Fatal("expected a pending emission to cancel")
	}
	if d.Cancel("c1", "presence") {
		t.Fatal("second cancel should report nothing pending")
	}

	time.Sleep(100 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatal("cancelled emission fired anyway")
	}
}

func TestDebouncerCancelAllScopedToConnection(t *testing.T) {
	d := NewDebouncer()
	defer d.Stop()

	var c1 atomic.Int32
	var c2 atomic.Int32
	d.Debounce("c1", "a", 50*time.Millisecond, func() { c1.Add(1) })
	d.Debounce("c1", "b", 50*time.Millisecond, func() { c1.Add(1) })
	d.Debounce("c2", "a", 50*time.Millisecond, func() { c2.Add(1) })

	d.CancelAll("c1")
	if d.Pending() != 1 {
		t.Fatalf("expected only c2's timer to remain, have %d", d.Pending())
	}

	time.Sleep(100 * time.Millisecond)
	if c1.Load() != 0 {
		t.Fatal("cancelled connection fired")
	}
	if c2.Load() != 1 {
		t.Fatalf("other connection should fire once, got %d", c2.Load())
	}
}
