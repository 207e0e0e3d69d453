package perf

import (
	"sync"
	"time"
)

// Batcher accumulates payloads per event name and flushes them as one
// combined emission when a count threshold or a time window is reached.
type Batcher struct {
	mu      sync.Mutex
	batches map[string]*batch
	maxSize int
	window  time.Duration
	emit    func(event string, payloads []any)
}

type batch struct {
	items []any
	timer *time.Timer
}

// NewBatcher builds a batcher flushing at maxSize items or after window,
// whichever comes first.
func NewBatcher(maxSize int, window time.Duration, emit func(event string, payloads []any)) *Batcher {
	if maxSize <= 0 {
		maxSize = 10
	}
	if window <= 0 {
		window = 100 * time.Millisecond
	}
	return &Batcher{
		batches: make(map[string]*batch),
		maxSize: maxSize,
		window:  window,
		emit:    emit,
	}
}

// Add queues a payload under the event name.
func (b *Batcher) Add(event string, payload any) {
	b.mu.Lock()
	bt, ok := b.batches[event]
	if !ok {
		bt = &batch{}
		bt.timer = time.AfterFunc(b.window, func() { b.Flush(event) })
		b.batches[event] = bt
	}
	bt.items = append(bt.items, payload)
	if len(bt.items) >= b.maxSize {
		items := b.take(event)
		b.mu.Unlock()
		b.emit(event, items)
		return
	}
	b.mu.Unlock()
}

// Flush emits the pending batch for one event name immediately.
func (b *Batcher) Flush(event string) {
	b.mu.Lock()
	items := b.take(event)
	b.mu.Unlock()
	if len(items) > 0 {
		b.emit(event, items)
	}
}

// FlushAll drains every pending batch. Used at shutdown.
func (b *Batcher) FlushAll() {
	b.mu.Lock()
	events := make([]string, 0, len(b.batches))
	for event := range b.batches {
		events = append(events, event)
	}
	b.mu.Unlock()
	for _, event := range events {
		b.Flush(event)
	}
}

// Pending reports how many payloads are queued under the event name.
func (b *Batcher) Pending(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bt, ok := b.batches[event]; ok {
		return len(bt.items)
	}
	return 0
}

// take removes and returns the batch items. Caller holds the lock.
func (b *Batcher) take(event string) []any {
	bt, ok := b.batches[event]
	if !ok {
		return nil
	}
	bt.timer.Stop()
	delete(b.batches, event)
	return bt.items
}
