package perf

import (
	"sync"
	"testing"
	"time"
)

type batchRecorder struct {
	mu    sync.Mutex
	calls [][]any
}

func (r *batchRecorder) emit(_ string, payloads []any) {
	r.mu.Lock()
	r.calls = append(r.calls, payloads)
	r.mu.Unlock()
}

func (r *batchRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestBatcherFlushesAtCountThreshold(t *testing.T) {
	rec := &batchRecorder{}
	b := NewBatcher(3, time.Minute, rec.emit)

	b.Add("sync", 1)
	b.Add("sync", 2)
	if rec.count() != 0 {
		t.Fatal("batch emitted before reaching the threshold")
	}
	b.Add("sync", 3)

	if rec.count() != 1 {
		t.Fatalf("expected one combined emission, got %d", rec.count())
	}
	if len(rec.calls[0]) != 3 {
		t.Fatalf("expected 3 payloads, got %d", len(rec.calls[0]))
	}
	if b.Pending("sync") != 0 {
		t.Fatalf("batch should be drained, %d pending", b.Pending("sync"))
	}
}

func TestBatcherFlushesOnWindow(t *testing.T) {
	rec := &batchRecorder{}
	b := NewBatcher(100, 30*time.Millisecond, rec.emit)

	b.Add("sync", 1)
	b.Add("sync", 2)

	time.Sleep(100 * time.Millisecond)
	if rec.count() != 1 {
		t.Fatalf("expected the window timer to flush, got %d emissions", rec.count())
	}
	if len(rec.calls[0]) != 2 {
		t.Fatalf("expected 2 payloads, got %d", len(rec.calls[0]))
	}
}

func TestBatcherEventsAreIsolated(t *testing.T) {
	rec := &batchRecorder{}
	b := NewBatcher(2, time.Minute, rec.emit)

	b.Add("a", 1)
	b.Add("b", 1)
	if rec.count() != 0 {
		t.Fatal("separate events must not share a batch")
	}
	b.Add("a", 2)
	if rec.count() != 1 {
		t.Fatalf("expected event a to flush alone, got %d", rec.count())
	}
	if b.Pending("b") != 1 {
		t.Fatalf("event b should still be queued, %d pending", b.Pending("b"))
	}
}

func TestBatcherFlushAll(t *testing.T) {
	rec := &batchRecorder{}
	b := NewBatcher(100, time.Minute, rec.emit)

	b.Add("a", 1)
	b.Add("b", 1)
	b.FlushAll()

	if rec.count() != 2 {
		t.Fatalf("expected both batches to drain, got %d", rec.count())
	}
	if b.Pending("a") != 0 || b.Pending("b") != 0 {
		t.Fatal("payloads left behind after FlushAll")
	}
}
