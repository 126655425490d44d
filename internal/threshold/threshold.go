package threshold

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/torosent/vuramp/internal/metrics"
)

// ErrConfiguration marks threshold problems that stem from configuration:
// bad syntax, unknown metrics, aggregates that do not fit the metric type.
var ErrConfiguration = errors.New("threshold configuration error")

// ConfigError describes one invalid threshold.
type ConfigError struct {
	Metric string
	Expr   string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Expr == "" {
		return fmt.Sprintf("threshold on %s: %s", e.Metric, e.Reason)
	}
	return fmt.Sprintf("threshold %s %q: %s", e.Metric, e.Expr, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

// Aggregate names.
const (
	AggCount = "count"
	AggRate  = "rate"
	AggAvg   = "avg"
	AggMin   = "min"
	AggMed   = "med"
	AggMax   = "max"
	// AggPercentile is the Aggregate of p(N) thresholds; N is in Percentile.
	AggPercentile = "p"
)

// Threshold is a pass/fail assertion over one metric aggregate.
type Threshold struct {
	Metric     string  // e.g. "http_req_duration", "errors"
	Aggregate  string  // one of the Agg constants
	Percentile float64 // set when Aggregate is AggPercentile
	Operator   string  // <, <=, >, >=, ==, !=
	Value      float64 // milliseconds for trends, fraction for rates
	Raw        string  // expression as written, e.g. "p(95)<1000"

	// AbortOnFail stops the run as soon as the threshold fails during it.
	AbortOnFail bool
	// DelayAbortEval postpones in-run evaluation of AbortOnFail thresholds.
	DelayAbortEval time.Duration
}

func (t Threshold) String() string {
	return t.Metric + " " + t.Raw
}

// AggregateLabel renders the aggregate as written in k6 syntax.
func (t Threshold) AggregateLabel() string {
	if t.Aggregate == AggPercentile {
		return "p(" + strconv.FormatFloat(t.Percentile, 'f', -1, 64) + ")"
	}
	return t.Aggregate
}

// Result is the outcome of evaluating one threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
	Err       error // set when the threshold could not be evaluated
}

var (
	exprPattern = regexp.MustCompile(
		`^\s*(count|rate|avg|min|med|max|p\(\s*[0-9]+(?:\.[0-9]+)?\s*\)|p[0-9]+(?:\.[0-9]+)?)\s*(<=|>=|==|!=|<|>)\s*(-?[0-9]+(?:\.[0-9]+)?(?:[eE][-+]?[0-9]+)?)\s*$`)
	combinedPattern = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_.\-]*)\s*:\s*(.+)$`)
)

// Parse parses a k6-style expression for metric.
// Supported forms:
//   - "p(95)<1000" or "p95 < 1000" (trend percentile in ms)
//   - "avg<200", "med<150", "min>0", "max<=2000" (trend, ms)
//   - "rate<0.05" (rate fraction, or counter per second)
//   - "count>100" (counter)
func Parse(metric, expr string) (Threshold, error) {
	metric = strings.TrimSpace(metric)
	if metric == "" {
		return Threshold{}, &ConfigError{Expr: expr, Reason: "metric name is required"}
	}
	m := exprPattern.FindStringSubmatch(expr)
	if m == nil {
		return Threshold{}, &ConfigError{Metric: metric, Expr: expr,
			Reason: "expected '<aggregate> <op> <number>', e.g. 'p(95)<500'"}
	}

	value, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Threshold{}, &ConfigError{Metric: metric, Expr: expr, Reason: "invalid value: " + err.Error()}
	}

	th := Threshold{
		Metric:    metric,
		Aggregate: m[1],
		Operator:  m[2],
		Value:     value,
		Raw:       strings.Join(strings.Fields(expr), ""),
	}
	if strings.HasPrefix(m[1], "p") && m[1] != AggPercentile {
		digits := strings.Trim(strings.TrimPrefix(m[1], "p"), "() ")
		p, err := strconv.ParseFloat(digits, 64)
		if err != nil || p < 0 || p > 100 {
			return Threshold{}, &ConfigError{Metric: metric, Expr: expr, Reason: "percentile must be between 0 and 100"}
		}
		th.Aggregate = AggPercentile
		th.Percentile = p
	}
	return th, nil
}

// ParseCombined parses the "metric:expression" form, e.g.
// "http_req_duration:p95 < 500".
func ParseCombined(s string) (Threshold, error) {
	m := combinedPattern.FindStringSubmatch(s)
	if m == nil {
		return Threshold{}, &ConfigError{Expr: s,
			Reason: "expected 'metric:aggregate op value', e.g. 'http_req_duration:p95 < 500'"}
	}
	return Parse(m[1], m[2])
}

// Spec is one configured threshold expression with its abort options.
type Spec struct {
	Expr           string
	AbortOnFail    bool
	DelayAbortEval time.Duration
}

// ParseSet parses thresholds keyed by metric name. Metrics are processed in
// name order so results are stable; every error is collected.
func ParseSet(set map[string][]Spec) ([]Threshold, error) {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		out  []Threshold
		errs error
	)
	for _, name := range names {
		for _, spec := range set[name] {
			th, err := Parse(name, spec.Expr)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			if spec.DelayAbortEval < 0 {
				errs = multierr.Append(errs, &ConfigError{Metric: name, Expr: spec.Expr, Reason: "delay_abort_eval must not be negative"})
				continue
			}
			th.AbortOnFail = spec.AbortOnFail
			th.DelayAbortEval = spec.DelayAbortEval
			out = append(out, th)
		}
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}

// Evaluate checks every threshold against snap. Thresholds are independent:
// one failing to evaluate does not stop the rest. Undefined metrics and
// aggregates that do not apply to the metric's type are returned as
// *ConfigError values combined into the error.
func Evaluate(thresholds []Threshold, snap metrics.Snapshot) ([]Result, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}
	results := make([]Result, 0, len(thresholds))
	var errs error
	for _, th := range thresholds {
		res := evaluateOne(th, snap)
		if res.Err != nil {
			errs = multierr.Append(errs, res.Err)
		}
		results = append(results, res)
	}
	return results, errs
}

// AllPassed reports whether every result passed. An empty set passes.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func evaluateOne(th Threshold, snap metrics.Snapshot) Result {
	actual, err := aggregateValue(th, snap)
	if err != nil {
		return Result{
			Threshold: th,
			Message:   fmt.Sprintf("✗ %s: error: %v", th, err),
			Err:       err,
		}
	}

	pass := compareValues(actual, th.Operator, th.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}
	return Result{
		Threshold: th,
		Actual:    actual,
		Pass:      pass,
		Message:   fmt.Sprintf("%s %s: %s %s %s", status, th, formatValue(actual), th.Operator, formatValue(th.Value)),
	}
}

func aggregateValue(th Threshold, snap metrics.Snapshot) (float64, error) {
	m, ok := snap.Metrics[th.Metric]
	if !ok {
		return 0, &ConfigError{Metric: th.Metric, Expr: th.Raw, Reason: "metric is not defined"}
	}
	invalid := func() (float64, error) {
		return 0, &ConfigError{Metric: th.Metric, Expr: th.Raw,
			Reason: fmt.Sprintf("aggregate %s is not valid for a %s", th.AggregateLabel(), m.Type)}
	}

	switch m.Type {
	case metrics.TypeTrend:
		switch th.Aggregate {
		case AggAvg:
			return ms(m.Avg()), nil
		case AggMin:
			return ms(m.Min), nil
		case AggMax:
			return ms(m.Max), nil
		case AggMed:
			return ms(m.Median()), nil
		case AggPercentile:
			return ms(m.Percentile(th.Percentile)), nil
		}
	case metrics.TypeRate:
		if th.Aggregate == AggRate {
			return m.Rate(), nil
		}
	case metrics.TypeCounter:
		switch th.Aggregate {
		case AggCount:
			return float64(m.Count), nil
		case AggRate:
			return m.PerSecond(), nil
		}
	}
	return invalid()
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func formatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	case "!=":
		return math.Abs(actual-expected) >= epsilon
	default:
		return false
	}
}
