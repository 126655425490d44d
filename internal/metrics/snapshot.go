package metrics

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Snapshot is an immutable copy of a registry at one instant.
type Snapshot struct {
	Elapsed time.Duration
	// Order lists metric names in registration order.
	Order   []string
	Metrics map[string]MetricSnapshot
	Checks  []CheckTally
	Faults  map[string]int64
}

// Metric returns the snapshot of the named metric.
func (s Snapshot) Metric(name string) (MetricSnapshot, bool) {
	m, ok := s.Metrics[name]
	return m, ok
}

// MetricSnapshot is the frozen state of one metric.
//
// Counter: Count is the sum. Rate: Passes and Fails, Count is their total.
// Trend: Count, Sum, Min and Max are exact; percentiles come from a private
// histogram copy.
type MetricSnapshot struct {
	Name   string
	Type   Type
	Count  int64
	Sum    time.Duration
	Passes int64
	Fails  int64
	Min    time.Duration
	Max    time.Duration

	elapsed time.Duration
	hist    *hdrhistogram.Histogram
}

// Rate returns the fraction of true observations, or 0 with no samples.
func (m MetricSnapshot) Rate() float64 {
	total := m.Passes + m.Fails
	if total == 0 {
		return 0
	}
	return float64(m.Passes) / float64(total)
}

// PerSecond returns Count divided by the measured interval.
func (m MetricSnapshot) PerSecond() float64 {
	secs := m.elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(m.Count) / secs
}

// Avg returns the exact mean of a trend.
func (m MetricSnapshot) Avg() time.Duration {
	if m.Count == 0 {
		return 0
	}
	return m.Sum / time.Duration(m.Count)
}

// Median is Percentile(50).
func (m MetricSnapshot) Median() time.Duration {
	return m.Percentile(50)
}

// Percentile returns the p-th percentile (0..100) of a trend.
func (m MetricSnapshot) Percentile(p float64) time.Duration {
	if m.Count == 0 || m.hist == nil {
		return 0
	}
	switch {
	case p <= 0:
		return m.Min
	case p >= 100:
		return m.Max
	}
	v := time.Duration(m.hist.ValueAtQuantile(p)) * time.Microsecond
	if v < m.Min {
		v = m.Min
	}
	if v > m.Max {
		v = m.Max
	}
	return v
}
