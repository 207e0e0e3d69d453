package perf

import (
	"sync"
	"time"
)

// Quality is a latency-derived connection quality tier.
type Quality string

const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityFair      Quality = "fair"
	QualityPoor      Quality = "poor"
	QualityVeryPoor  Quality = "very_poor"
)

// PollInterval is the recommended polling interval for the tier.
func (q Quality) PollInterval() time.Duration {
	switch q {
	case QualityExcellent:
		return time.Second
	case QualityGood:
		return 2 * time.Second
	case QualityFair:
		return 3 * time.Second
	case QualityPoor:
		return 5 * time.Second
	default:
		return 10 * time.Second
	}
}

// Multiplier scales a caller-registered base frequency for the tier.
func (q Quality) Multiplier() float64 {
	switch q {
	case QualityExcellent:
		return 0.8
	case QualityGood:
		return 1.0
	case QualityFair:
		return 1.5
	case QualityPoor:
		return 2.0
	default:
		return 3.0
	}
}

// Classify maps an average round-trip latency onto a quality tier.
func Classify(avg time.Duration) Quality {
	switch {
	case avg < 50*time.Millisecond:
		return QualityExcellent
	case avg < 100*time.Millisecond:
		return QualityGood
	case avg < 200*time.Millisecond:
		return QualityFair
	case avg < 500*time.Millisecond:
		return QualityPoor
	default:
		return QualityVeryPoor
	}
}

// LatencyMonitor keeps a bounded rolling window of round-trip samples and
// classifies the average.
type LatencyMonitor struct {
	mu      sync.Mutex
	samples []time.Duration
	window  int
}

// NewLatencyMonitor builds a monitor keeping the last window samples.
func NewLatencyMonitor(window int) *LatencyMonitor {
	if window <= 0 {
		window = 10
	}
	return &LatencyMonitor{window: window}
}

// Record adds a round-trip sample, evicting the oldest beyond the window.
func (m *LatencyMonitor) Record(rtt time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, rtt)
	if len(m.samples) > m.window {
		m.samples = m.samples[len(m.samples)-m.window:]
	}
}

// Average returns the rolling average, or zero with no samples.
func (m *LatencyMonitor) Average() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.samples) == 0 {
		return 0
	}
	var sum time.Duration
	for _, s := range m.samples {
		sum += s
	}
	return sum / time.Duration(len(m.samples))
}

// Quality classifies the rolling average. With no samples the connection is
// assumed good.
func (m *LatencyMonitor) Quality() Quality {
	m.mu.Lock()
	n := len(m.samples)
	m.mu.Unlock()
	if n == 0 {
		return QualityGood
	}
	return Classify(m.Average())
}

// AdaptiveInterval scales a caller base interval by the tier multiplier.
func (m *LatencyMonitor) AdaptiveInterval(base time.Duration) time.Duration {
	return time.Duration(float64(base) * m.Quality().Multiplier())
}

// Reset drops all samples.
func (m *LatencyMonitor) Reset() {
	m.mu.Lock()
	m.samples = nil
	m.mu.Unlock()
}
