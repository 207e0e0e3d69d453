package perf

import (
	"sync/atomic"
	"time"
)

// Metrics is the process-wide counter set. Monotonically accumulating for
// the process lifetime unless explicitly reset.
type Metrics struct {
	packetsSent     atomic.Uint64
	packetsReceived atomic.Uint64
	throttled       atomic.Uint64
	debounced       atomic.Uint64
	batched         atomic.Uint64
	dropped         atomic.Uint64
	errors          atomic.Uint64
	reconnects      atomic.Uint64

	start   atomic.Int64 // unix nanos
	latency *LatencyMonitor
}

// Snapshot is a point-in-time copy of the counters for health reporting.
type Snapshot struct {
	PacketsSent     uint64        `json:"packetsSent"`
	PacketsReceived uint64        `json:"packetsReceived"`
	Throttled       uint64        `json:"throttled"`
	Debounced       uint64        `json:"debounced"`
	Batched         uint64        `json:"batched"`
	Dropped         uint64        `json:"dropped"`
	Errors          uint64        `json:"errors"`
	Reconnects      uint64        `json:"reconnects"`
	AverageLatency  time.Duration `json:"averageLatency"`
	Quality         Quality       `json:"quality"`
	Uptime          time.Duration `json:"uptime"`
}

// NewMetrics builds a metrics collector with a rolling latency window.
func NewMetrics(latencyWindow int) *Metrics {
	m := &Metrics{latency: NewLatencyMonitor(latencyWindow)}
	m.start.Store(time.Now().UnixNano())
	return m
}

// Latency exposes the rolling latency monitor.
func (m *Metrics) Latency() *LatencyMonitor { return m.latency }

func (m *Metrics) Sent(n int)      { m.packetsSent.Add(uint64(n)) }
func (m *Metrics) Received(n int)  { m.packetsReceived.Add(uint64(n)) }
func (m *Metrics) Throttled()      { m.throttled.Add(1) }
func (m *Metrics) Debounced()      { m.debounced.Add(1) }
func (m *Metrics) Batched(n int)   { m.batched.Add(uint64(n)) }
func (m *Metrics) Dropped(n int)   { m.dropped.Add(uint64(n)) }
func (m *Metrics) Error()          { m.errors.Add(1) }
func (m *Metrics) Reconnect()      { m.reconnects.Add(1) }

// RecordLatency feeds a round-trip sample into the rolling window.
func (m *Metrics) RecordLatency(rtt time.Duration) {
	m.latency.Record(rtt)
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		PacketsSent:     m.packetsSent.Load(),
		PacketsReceived: m.packetsReceived.Load(),
		Throttled:       m.throttled.Load(),
		Debounced:       m.debounced.Load(),
		Batched:         m.batched.Load(),
		Dropped:         m.dropped.Load(),
		Errors:          m.errors.Load(),
		Reconnects:      m.reconnects.Load(),
		AverageLatency:  m.latency.Average(),
		Quality:         m.latency.Quality(),
		Uptime:          time.Since(time.Unix(0, m.start.Load())),
	}
}

// Reset zeroes every counter and drops latency samples.
func (m *Metrics) Reset() {
	m.packetsSent.Store(0)
	m.packetsReceived.Store(0)
	m.throttled.Store(0)
	m.debounced.Store(0)
	m.batched.Store(0)
	m.dropped.Store(0)
	m.errors.Store(0)
	m.reconnects.Store(0)
	m.start.Store(time.Now().UnixNano())
	m.latency.Reset()
}
