package metrics

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Built-in metric names.
const (
	HTTPReqs          = "http_reqs"
	HTTPReqFailed     = "http_req_failed"
	HTTPReqDuration   = "http_req_duration"
	DataReceived      = "data_received"
	Iterations        = "iterations"
	IterationDuration = "iteration_duration"
	IterationFailed   = "iteration_failed"
	Checks            = "checks"
)

var builtinTypes = map[string]Type{
	HTTPReqs:          TypeCounter,
	HTTPReqFailed:     TypeRate,
	HTTPReqDuration:   TypeTrend,
	DataReceived:      TypeCounter,
	Iterations:        TypeCounter,
	IterationDuration: TypeTrend,
	IterationFailed:   TypeRate,
	Checks:            TypeRate,
}

var (
	// ErrDuplicateMetric is returned when a metric name is registered twice.
	ErrDuplicateMetric = errors.New("metric already registered")
	// ErrUnknownMetric is returned by typed lookups for a missing name.
	ErrUnknownMetric = errors.New("unknown metric")
	// ErrInvalidMetricName is returned for empty names.
	ErrInvalidMetricName = errors.New("invalid metric name")
)

// IsBuiltin reports whether name is one of the pre-registered metrics.
func IsBuiltin(name string) bool {
	_, ok := builtinTypes[name]
	return ok
}

// BuiltinType returns the type of a built-in metric.
func BuiltinType(name string) (Type, bool) {
	t, ok := builtinTypes[name]
	return t, ok
}

// Builtins gives direct access to the pre-registered metrics.
type Builtins struct {
	HTTPReqs          *Counter
	HTTPReqFailed     *Rate
	HTTPReqDuration   *Trend
	DataReceived      *Counter
	Iterations        *Counter
	IterationDuration *Trend
	IterationFailed   *Rate
	Checks            *Rate
}

// CheckTally counts the outcomes of one named check.
type CheckTally struct {
	Name   string `json:"name" yaml:"name"`
	Passes int64  `json:"passes" yaml:"passes"`
	Fails  int64  `json:"fails" yaml:"fails"`
}

// Total returns passes plus fails.
func (c CheckTally) Total() int64 { return c.Passes + c.Fails }

// Registry holds every metric of a run.
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]Metric
	order   []string

	builtins Builtins

	checkMu    sync.Mutex
	checks     map[string]*CheckTally
	checkOrder []string

	faultMu sync.Mutex
	faults  map[string]int64

	timeMu  sync.Mutex
	started time.Time
	stopped time.Time
}

// NewRegistry returns a registry with the built-in metrics registered.
func NewRegistry() *Registry {
	r := &Registry{
		metrics: make(map[string]Metric),
		checks:  make(map[string]*CheckTally),
		faults:  make(map[string]int64),
	}
	r.builtins = Builtins{
		HTTPReqs:          r.mustCounter(HTTPReqs),
		HTTPReqFailed:     r.mustRate(HTTPReqFailed),
		HTTPReqDuration:   r.mustTrend(HTTPReqDuration),
		DataReceived:      r.mustCounter(DataReceived),
		Iterations:        r.mustCounter(Iterations),
		IterationDuration: r.mustTrend(IterationDuration),
		IterationFailed:   r.mustRate(IterationFailed),
		Checks:            r.mustRate(Checks),
	}
	return r
}

// Builtins returns the pre-registered metrics.
func (r *Registry) Builtins() Builtins { return r.builtins }

func (r *Registry) register(m Metric) error {
	if m.Name() == "" {
		return ErrInvalidMetricName
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.metrics[m.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateMetric, m.Name())
	}
	r.metrics[m.Name()] = m
	r.order = append(r.order, m.Name())
	return nil
}

// NewCounter registers a counter.
func (r *Registry) NewCounter(name string) (*Counter, error) {
	c := &Counter{name: name}
	if err := r.register(c); err != nil {
		return nil, err
	}
	return c, nil
}

// NewRate registers a rate.
func (r *Registry) NewRate(name string) (*Rate, error) {
	rt := &Rate{name: name}
	if err := r.register(rt); err != nil {
		return nil, err
	}
	return rt, nil
}

// NewTrend registers a trend.
func (r *Registry) NewTrend(name string) (*Trend, error) {
	t := newTrend(name)
	if err := r.register(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Register creates a metric of the given type.
func (r *Registry) Register(name string, typ Type) (Metric, error) {
	switch typ {
	case TypeCounter:
		return r.NewCounter(name)
	case TypeRate:
		return r.NewRate(name)
	case TypeTrend:
		return r.NewTrend(name)
	default:
		return nil, fmt.Errorf("metric %q: unsupported type %q", name, typ)
	}
}

func (r *Registry) mustCounter(name string) *Counter {
	c, err := r.NewCounter(name)
	if err != nil {
		panic(err)
	}
	return c
}

func (r *Registry) mustRate(name string) *Rate {
	rt, err := r.NewRate(name)
	if err != nil {
		panic(err)
	}
	return rt
}

func (r *Registry) mustTrend(name string) *Trend {
	t, err := r.NewTrend(name)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the metric registered under name.
func (r *Registry) Lookup(name string) (Metric, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.metrics[name]
	return m, ok
}

// Names returns metric names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Counter looks up a counter by name.
func (r *Registry) Counter(name string) (*Counter, error) {
	m, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
	}
	c, ok := m.(*Counter)
	if !ok {
		return nil, fmt.Errorf("metric %s is a %s, not a counter", name, m.Type())
	}
	return c, nil
}

// Rate looks up a rate by name.
func (r *Registry) Rate(name string) (*Rate, error) {
	m, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
	}
	rt, ok := m.(*Rate)
	if !ok {
		return nil, fmt.Errorf("metric %s is a %s, not a rate", name, m.Type())
	}
	return rt, nil
}

// Trend looks up a trend by name.
func (r *Registry) Trend(name string) (*Trend, error) {
	m, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
	}
	t, ok := m.(*Trend)
	if !ok {
		return nil, fmt.Errorf("metric %s is a %s, not a trend", name, m.Type())
	}
	return t, nil
}

// RecordCheck records one check outcome in the per-name tally and the
// built-in checks rate.
func (r *Registry) RecordCheck(name string, ok bool) {
	r.checkMu.Lock()
	tally, exists := r.checks[name]
	if !exists {
		tally = &CheckTally{Name: name}
		r.checks[name] = tally
		r.checkOrder = append(r.checkOrder, name)
	}
	if ok {
		tally.Passes++
	} else {
		tally.Fails++
	}
	r.checkMu.Unlock()

	r.builtins.Checks.Add(ok)
}

// RecordFault tallies a workload fault by its friendly error name.
func (r *Registry) RecordFault(err error) {
	if err == nil {
		return
	}
	name := FaultName(err)
	r.faultMu.Lock()
	r.faults[name]++
	r.faultMu.Unlock()
}

// Start marks the beginning of the measured interval.
func (r *Registry) Start() {
	r.timeMu.Lock()
	defer r.timeMu.Unlock()
	r.started = time.Now()
	r.stopped = time.Time{}
}

// Stop freezes the measured interval so later snapshots agree.
func (r *Registry) Stop() {
	r.timeMu.Lock()
	defer r.timeMu.Unlock()
	if r.started.IsZero() || !r.stopped.IsZero() {
		return
	}
	r.stopped = time.Now()
}

func (r *Registry) elapsed() time.Duration {
	r.timeMu.Lock()
	defer r.timeMu.Unlock()
	switch {
	case r.started.IsZero():
		return 0
	case r.stopped.IsZero():
		return time.Since(r.started)
	default:
		return r.stopped.Sub(r.started)
	}
}

// Snapshot returns a deep copy of every metric, check tally and fault count.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	names := append([]string(nil), r.order...)
	ms := make([]Metric, 0, len(names))
	for _, n := range names {
		ms = append(ms, r.metrics[n])
	}
	r.mu.RUnlock()

	elapsed := r.elapsed()
	snap := Snapshot{
		Elapsed: elapsed,
		Order:   names,
		Metrics: make(map[string]MetricSnapshot, len(ms)),
		Faults:  make(map[string]int64),
	}
	for _, m := range ms {
		cp := m.snapshot()
		cp.elapsed = elapsed
		snap.Metrics[cp.Name] = cp
	}

	r.checkMu.Lock()
	snap.Checks = make([]CheckTally, 0, len(r.checkOrder))
	for _, n := range r.checkOrder {
		snap.Checks = append(snap.Checks, *r.checks[n])
	}
	r.checkMu.Unlock()

	r.faultMu.Lock()
	for k, v := range r.faults {
		snap.Faults[k] = v
	}
	r.faultMu.Unlock()

	return snap
}

// FaultNames returns fault labels sorted by descending count, then name.
func (s Snapshot) FaultNames() []string {
	names := make([]string, 0, len(s.Faults))
	for n := range s.Faults {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if s.Faults[names[i]] != s.Faults[names[j]] {
			return s.Faults[names[i]] > s.Faults[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}
