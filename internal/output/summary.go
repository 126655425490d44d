package output

import (
	"sort"
	"time"

	"github.com/torosent/vuramp/internal/metrics"
	"github.com/torosent/vuramp/internal/runner"
	"github.com/torosent/vuramp/internal/threshold"
)

// Summary is the immutable end-of-run record.
type Summary struct {
	RunID     string
	Name      string
	StartedAt time.Time
	EndedAt   time.Time
	Stages    []runner.Stage
	VUsMax    int

	Snapshot   metrics.Snapshot
	Thresholds []threshold.Result
	// ThresholdErr is set when some thresholds could not be evaluated.
	ThresholdErr error

	Interrupted bool
	Aborted     bool
	AbortReason string
	Forced      bool
}

// Passed reports whether every threshold was evaluated and passed.
func (s *Summary) Passed() bool {
	return s.ThresholdErr == nil && threshold.AllPassed(s.Thresholds)
}

// Duration is the measured run time.
func (s *Summary) Duration() time.Duration {
	if s.Snapshot.Elapsed > 0 {
		return s.Snapshot.Elapsed
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// Document is the serialisable form of a Summary, written as JSON or YAML.
type Document struct {
	RunID          string                    `json:"run_id" yaml:"run_id"`
	Name           string                    `json:"name,omitempty" yaml:"name,omitempty"`
	StartedAt      time.Time                 `json:"started_at" yaml:"started_at"`
	EndedAt        time.Time                 `json:"ended_at" yaml:"ended_at"`
	DurationMs     float64                   `json:"duration_ms" yaml:"duration_ms"`
	Stages         []StageDoc                `json:"stages" yaml:"stages"`
	VUsMax         int                       `json:"vus_max" yaml:"vus_max"`
	Metrics        map[string]MetricDoc      `json:"metrics" yaml:"metrics"`
	Thresholds     map[string][]ThresholdDoc `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
	ThresholdError string                    `json:"threshold_error,omitempty" yaml:"threshold_error,omitempty"`
	Checks         []metrics.CheckTally      `json:"checks,omitempty" yaml:"checks,omitempty"`
	Faults         map[string]int64          `json:"faults,omitempty" yaml:"faults,omitempty"`
	Passed         bool                      `json:"passed" yaml:"passed"`
	Interrupted    bool                      `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
	Aborted        bool                      `json:"aborted,omitempty" yaml:"aborted,omitempty"`
	AbortReason    string                    `json:"abort_reason,omitempty" yaml:"abort_reason,omitempty"`
}

// StageDoc is one stage in a Document.
type StageDoc struct {
	Duration string `json:"duration" yaml:"duration"`
	Target   int    `json:"target" yaml:"target"`
}

// MetricDoc holds a metric's aggregates. Trend values are in milliseconds.
type MetricDoc struct {
	Type   string             `json:"type" yaml:"type"`
	Values map[string]float64 `json:"values" yaml:"values"`
}

// ThresholdDoc is one evaluated threshold.
type ThresholdDoc struct {
	Threshold string  `json:"threshold" yaml:"threshold"`
	Actual    float64 `json:"actual" yaml:"actual"`
	OK        bool    `json:"ok" yaml:"ok"`
	Error     string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// trendPercentiles are reported for every trend.
var trendPercentiles = []float64{90, 95, 99}

func trendLabel(p float64) string {
	return threshold.Threshold{Aggregate: threshold.AggPercentile, Percentile: p}.AggregateLabel()
}

// NewDocument converts s without modifying it.
func NewDocument(s *Summary) Document {
	doc := Document{
		RunID:       s.RunID,
		Name:        s.Name,
		StartedAt:   s.StartedAt,
		EndedAt:     s.EndedAt,
		DurationMs:  msf(s.Duration()),
		VUsMax:      s.VUsMax,
		Metrics:     make(map[string]MetricDoc, len(s.Snapshot.Metrics)),
		Passed:      s.Passed(),
		Interrupted: s.Interrupted,
		Aborted:     s.Aborted,
		AbortReason: s.AbortReason,
	}
	for _, st := range s.Stages {
		doc.Stages = append(doc.Stages, StageDoc{Duration: st.Duration.String(), Target: st.Target})
	}
	for name, m := range s.Snapshot.Metrics {
		doc.Metrics[name] = MetricDoc{Type: string(m.Type), Values: metricValues(m)}
	}
	if len(s.Thresholds) > 0 {
		doc.Thresholds = make(map[string][]ThresholdDoc)
		for _, r := range s.Thresholds {
			td := ThresholdDoc{Threshold: r.Threshold.Raw, Actual: r.Actual, OK: r.Pass}
			if r.Err != nil {
				td.Error = r.Err.Error()
			}
			doc.Thresholds[r.Threshold.Metric] = append(doc.Thresholds[r.Threshold.Metric], td)
		}
	}
	if s.ThresholdErr != nil {
		doc.ThresholdError = s.ThresholdErr.Error()
	}
	if len(s.Snapshot.Checks) > 0 {
		doc.Checks = append([]metrics.CheckTally(nil), s.Snapshot.Checks...)
	}
	if len(s.Snapshot.Faults) > 0 {
		doc.Faults = make(map[string]int64, len(s.Snapshot.Faults))
		for k, v := range s.Snapshot.Faults {
			doc.Faults[k] = v
		}
	}
	return doc
}

func metricValues(m metrics.MetricSnapshot) map[string]float64 {
	switch m.Type {
	case metrics.TypeCounter:
		return map[string]float64{
			"count": float64(m.Count),
			"rate":  m.PerSecond(),
		}
	case metrics.TypeRate:
		return map[string]float64{
			"rate":   m.Rate(),
			"passes": float64(m.Passes),
			"fails":  float64(m.Fails),
		}
	default:
		v := map[string]float64{
			"count": float64(m.Count),
			"avg":   msf(m.Avg()),
			"min":   msf(m.Min),
			"med":   msf(m.Median()),
			"max":   msf(m.Max),
		}
		for _, p := range trendPercentiles {
			v[trendLabel(p)] = msf(m.Percentile(p))
		}
		return v
	}
}

// sortedMetricNames lists built-ins first in registration order, then
// custom metrics alphabetically.
func sortedMetricNames(snap metrics.Snapshot) (builtin, custom []string) {
	for _, name := range snap.Order {
		if _, ok := snap.Metrics[name]; !ok {
			continue
		}
		if metrics.IsBuiltin(name) {
			builtin = append(builtin, name)
		} else {
			custom = append(custom, name)
		}
	}
	sort.Strings(custom)
	return builtin, custom
}

func msf(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
