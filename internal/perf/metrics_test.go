package perf

import (
	"testing"
	"time"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics(10)

	m.Sent(3)
	m.Received(2)
	m.Throttled()
	m.Debounced()
	m.Batched(5)
	m.Dropped(1)
	m.Error()
	m.Reconnect()
	m.RecordLatency(40 * time.Millisecond)

	s := m.Snapshot()
	if s.PacketsSent != 3 || s.PacketsReceived != 2 {
		t.Fatalf("packet counters wrong: %+v", s)
	}
	if s.Throttled != 1 || s.Debounced != 1 || s.Batched != 5 {
		t.Fatalf("shaping counters wrong: %+v", s)
	}
	if s.Dropped != 1 || s.Errors != 1 || s.Reconnects != 1 {
		t.Fatalf("failure counters wrong: %+v", s)
	}
	if s.AverageLatency != 40*time.Millisecond || s.Quality != QualityExcellent {
		t.Fatalf("latency fields wrong: %+v", s)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics(10)
	m.Sent(10)
	m.RecordLatency(700 * time.Millisecond)

	m.Reset()

	s := m.Snapshot()
	if s.PacketsSent != 0 {
		t.Fatalf("counters not cleared: %+v", s)
	}
	if s.AverageLatency != 0 || s.Quality != QualityGood {
		t.Fatalf("latency window not cleared: %+v", s)
	}
}
