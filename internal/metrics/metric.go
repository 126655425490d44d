package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Type identifies the aggregation a metric performs.
type Type string

const (
	TypeCounter Type = "counter"
	TypeRate    Type = "rate"
	TypeTrend   Type = "trend"
)

// ParseType maps a configuration string onto a metric Type.
func ParseType(s string) (Type, bool) {
	switch Type(s) {
	case TypeCounter, TypeRate, TypeTrend:
		return Type(s), true
	default:
		return "", false
	}
}

// Metric is implemented by Counter, Rate and Trend.
type Metric interface {
	Name() string
	Type() Type
	snapshot() MetricSnapshot
}

// Counter is a monotonic sum.
type Counter struct {
	name  string
	value atomic.Int64
}

func (c *Counter) Name() string { return c.name }
func (c *Counter) Type() Type   { return TypeCounter }

// Add increases the counter by n. Negative deltas are ignored so the value
// never decreases.
func (c *Counter) Add(n int64) {
	if n <= 0 {
		return
	}
	c.value.Add(n)
}

// Value returns the current sum.
func (c *Counter) Value() int64 { return c.value.Load() }

func (c *Counter) snapshot() MetricSnapshot {
	return MetricSnapshot{Name: c.name, Type: TypeCounter, Count: c.value.Load()}
}

// Rate tracks the fraction of true observations.
type Rate struct {
	name   string
	passes atomic.Int64
	fails  atomic.Int64
}

func (r *Rate) Name() string { return r.name }
func (r *Rate) Type() Type   { return TypeRate }

// Add records one observation.
func (r *Rate) Add(v bool) {
	if v {
		r.passes.Add(1)
		return
	}
	r.fails.Add(1)
}

// Counts returns the true and false observation counts.
func (r *Rate) Counts() (passes, fails int64) {
	return r.passes.Load(), r.fails.Load()
}

func (r *Rate) snapshot() MetricSnapshot {
	passes := r.passes.Load()
	fails := r.fails.Load()
	return MetricSnapshot{
		Name:   r.name,
		Type:   TypeRate,
		Count:  passes + fails,
		Passes: passes,
		Fails:  fails,
	}
}

const (
	// Track durations from 1µs up to 10 minutes with 3 significant figures.
	lowestTrackable  = 1
	highestTrackable = int64(10 * time.Minute / time.Microsecond)
	sigFigures       = 3
)

// Trend records a distribution of durations.
type Trend struct {
	name string

	mu    sync.Mutex
	hist  *hdrhistogram.Histogram
	count int64
	sum   time.Duration
	min   time.Duration
	max   time.Duration
}

func newTrend(name string) *Trend {
	return &Trend{
		name: name,
		hist: hdrhistogram.New(lowestTrackable, highestTrackable, sigFigures),
	}
}

func (t *Trend) Name() string { return t.name }
func (t *Trend) Type() Type   { return TypeTrend }

// Add records a single duration. Negative durations are recorded as zero.
func (t *Trend) Add(d time.Duration) {
	if d < 0 {
		d = 0
	}
	us := d.Microseconds()
	if us < lowestTrackable {
		us = lowestTrackable
	}
	if us > highestTrackable {
		us = highestTrackable
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	_ = t.hist.RecordValue(us)
	if t.count == 0 || d < t.min {
		t.min = d
	}
	if d > t.max {
		t.max = d
	}
	t.sum += d
	t.count++
}

func (t *Trend) snapshot() MetricSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	cp := hdrhistogram.New(lowestTrackable, highestTrackable, sigFigures)
	cp.Merge(t.hist)
	return MetricSnapshot{
		Name:  t.name,
		Type:  TypeTrend,
		Count: t.count,
		Sum:   t.sum,
		Min:   t.min,
		Max:   t.max,
		hist:  cp,
	}
}
