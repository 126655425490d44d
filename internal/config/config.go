package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/torosent/vuramp/internal/metrics"
	"github.com/torosent/vuramp/internal/runner"
	"github.com/torosent/vuramp/internal/threshold"
	"github.com/torosent/vuramp/internal/tracing"
)

// DefaultBase is the base URL name used when a request names none.
const DefaultBase = "default"

type Config struct {
	ConfigFile    string                      `mapstructure:"-"`
	Name          string                      `mapstructure:"name"`
	BaseURLs      map[string]string           `mapstructure:"base_urls"`
	Stages        []runner.Stage              `mapstructure:"stages"`
	Thresholds    map[string][]threshold.Spec `mapstructure:"thresholds"`
	Metrics       []MetricConfig              `mapstructure:"metrics"`
	Requests      []RequestConfig             `mapstructure:"requests"`
	Checks        []CheckConfig               `mapstructure:"checks"`
	Sleep         runner.ThinkTime            `mapstructure:"sleep"`
	Timeout       time.Duration               `mapstructure:"timeout"`
	GracefulStop  time.Duration               `mapstructure:"graceful_stop"`
	MaxRPS        int                         `mapstructure:"max_rps"`
	SummaryExport []string                    `mapstructure:"summary_export"`
	NoColor       bool                        `mapstructure:"no_color"`
	Quiet         bool                        `mapstructure:"quiet"`
	LogErrors     bool                        `mapstructure:"log_errors"`
	LogLevel      string                      `mapstructure:"log_level"`
	LogFormat     string                      `mapstructure:"log_format"`
	MetricsAddr   string                      `mapstructure:"metrics_addr"`
	HistoryDB     string                      `mapstructure:"history_db"`
	Seed          int64                       `mapstructure:"seed"`
	Tick          time.Duration               `mapstructure:"tick"`
	Tracing       tracing.Config              `mapstructure:"tracing"`
}

// MetricConfig declares a custom metric.
type MetricConfig struct {
	Name string `mapstructure:"name"`
	Type string `mapstructure:"type"` // counter, rate or trend
}

// RequestConfig is one step of the declarative scenario.
type RequestConfig struct {
	Name     string            `mapstructure:"name"`
	Method   string            `mapstructure:"method"`
	Base     string            `mapstructure:"base"`
	Path     string            `mapstructure:"path"`
	URL      string            `mapstructure:"url"`
	Headers  map[string]string `mapstructure:"headers"`
	Body     string            `mapstructure:"body"`
	BodyFile string            `mapstructure:"body_file"`
	Checks   []CheckConfig     `mapstructure:"checks"`
	// Trend names a trend metric that receives this request's duration.
	Trend string `mapstructure:"trend"`
	// ErrorRate names a rate metric that receives true when a check fails.
	ErrorRate string `mapstructure:"error_rate"`
}

type CheckType string

const (
	CheckStatus         CheckType = "status"
	CheckDuration       CheckType = "duration"
	CheckBodyContains   CheckType = "body_contains"
	CheckBodyMatches    CheckType = "body_matches"
	CheckHeaderContains CheckType = "header_contains"
	CheckJSONPath       CheckType = "json_path"
)

// CheckConfig declares a response check. Which fields apply depends on Type.
type CheckConfig struct {
	Name     string        `mapstructure:"name"`
	Type     CheckType     `mapstructure:"type"`
	Status   []int         `mapstructure:"status"`
	Max      time.Duration `mapstructure:"max"`
	Contains string        `mapstructure:"contains"`
	Header   string        `mapstructure:"header"`
	Pattern  string        `mapstructure:"pattern"`
	Path     string        `mapstructure:"path"`
	Equals   []string      `mapstructure:"equals"`
}

// Defaults returns a configuration with every default applied.
func Defaults() *Config {
	return &Config{
		BaseURLs:     map[string]string{},
		Thresholds:   map[string][]threshold.Spec{},
		Timeout:      30 * time.Second,
		GracefulStop: runner.DefaultGracefulStop,
		LogLevel:     "info",
		LogFormat:    "console",
		Tick:         runner.DefaultTickInterval,
		Tracing:      tracing.Config{Protocol: "grpc", SampleRate: 1.0},
	}
}

// ResolveURL returns the absolute URL req targets: its own URL when set,
// otherwise its base (or the default base) joined with its path.
func (c Config) ResolveURL(req RequestConfig) (string, error) {
	if u := strings.TrimSpace(req.URL); u != "" {
		return u, nil
	}
	name := strings.TrimSpace(req.Base)
	if name == "" {
		name = DefaultBase
	}
	base, ok := c.BaseURLs[name]
	if !ok {
		return "", fmt.Errorf("base url %q is not defined", name)
	}
	path := req.Path
	if path == "" {
		return base, nil
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/"), nil
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Validate checks the whole configuration and reports every issue at once.
func (c Config) Validate() error {
	var issues []string

	if err := runner.ValidateStages(c.Stages); err != nil {
		issues = append(issues, fmt.Sprintf("stages: %v", err))
	}
	if err := c.Sleep.Validate(); err != nil {
		issues = append(issues, fmt.Sprintf("sleep: %v", err))
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.GracefulStop < 0 {
		issues = append(issues, "graceful_stop must be >= 0")
	}
	if c.MaxRPS < 0 {
		issues = append(issues, "max_rps must be >= 0")
	}
	if c.Tick < 0 {
		issues = append(issues, "tick must be >= 0")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		issues = append(issues, "tracing: sample_rate must be between 0 and 1")
	}
	switch strings.ToLower(c.Tracing.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", c.Tracing.Protocol))
	}

	for name, raw := range c.BaseURLs {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			issues = append(issues, fmt.Sprintf("base_urls.%s: %q is not an absolute URL", name, raw))
		}
	}

	declared := map[string]metrics.Type{}
	for idx, m := range c.Metrics {
		name := strings.TrimSpace(m.Name)
		typ, ok := metrics.ParseType(m.Type)
		switch {
		case name == "":
			issues = append(issues, fmt.Sprintf("metrics[%d]: name is required", idx))
			continue
		case metrics.IsBuiltin(name):
			issues = append(issues, fmt.Sprintf("metrics[%d]: %s is a built-in metric", idx, name))
			continue
		case !ok:
			issues = append(issues, fmt.Sprintf("metrics[%d]: type must be counter, rate or trend, got %q", idx, m.Type))
			continue
		}
		if _, dup := declared[name]; dup {
			issues = append(issues, fmt.Sprintf("metrics[%d]: duplicate metric %s", idx, name))
			continue
		}
		declared[name] = typ
	}
	metricType := func(name string) (metrics.Type, bool) {
		if t, ok := metrics.BuiltinType(name); ok {
			return t, true
		}
		t, ok := declared[name]
		return t, ok
	}

	for name, specs := range c.Thresholds {
		if _, ok := metricType(name); !ok {
			issues = append(issues, fmt.Sprintf("thresholds.%s: metric is not defined", name))
		}
		for _, spec := range specs {
			if _, err := threshold.Parse(name, spec.Expr); err != nil {
				issues = append(issues, err.Error())
			}
			if spec.DelayAbortEval < 0 {
				issues = append(issues, fmt.Sprintf("thresholds.%s: delay_abort_eval must be >= 0", name))
			}
		}
	}

	if len(c.Requests) == 0 {
		issues = append(issues, "at least one request is required")
	}
	issues = append(issues, validateChecks("checks", c.Checks)...)
	for idx, req := range c.Requests {
		label := fmt.Sprintf("requests[%d]", idx)
		if _, err := c.ResolveURL(req); err != nil {
			issues = append(issues, fmt.Sprintf("%s: %v", label, err))
		}
		if strings.TrimSpace(req.Body) != "" && strings.TrimSpace(req.BodyFile) != "" {
			issues = append(issues, fmt.Sprintf("%s: body and body_file are mutually exclusive", label))
		}
		if req.Trend != "" {
			if t, ok := metricType(req.Trend); !ok || t != metrics.TypeTrend {
				issues = append(issues, fmt.Sprintf("%s: trend %s is not a declared trend metric", label, req.Trend))
			}
		}
		if req.ErrorRate != "" {
			if t, ok := metricType(req.ErrorRate); !ok || t != metrics.TypeRate {
				issues = append(issues, fmt.Sprintf("%s: error_rate %s is not a declared rate metric", label, req.ErrorRate))
			}
		}
		issues = append(issues, validateChecks(label+".checks", req.Checks)...)
	}

	if c.MaxRPS > 1000 {
		fmt.Fprintf(os.Stderr, "WARNING: High request rate configured (%d RPS). Ensure you have authorization to test the target system.\n", c.MaxRPS)
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateChecks(label string, checks []CheckConfig) []string {
	var issues []string
	for idx, ch := range checks {
		at := fmt.Sprintf("%s[%d]", label, idx)
		switch ch.Type {
		case CheckStatus:
			if len(ch.Status) == 0 {
				issues = append(issues, at+": status needs at least one code")
			}
		case CheckDuration:
			if ch.Max <= 0 {
				issues = append(issues, at+": duration needs max > 0")
			}
		case CheckBodyContains:
			if ch.Contains == "" {
				issues = append(issues, at+": body_contains needs contains")
			}
		case CheckBodyMatches:
			if _, err := regexp.Compile(ch.Pattern); err != nil || ch.Pattern == "" {
				issues = append(issues, at+": body_matches needs a valid pattern")
			}
		case CheckHeaderContains:
			if ch.Header == "" {
				issues = append(issues, at+": header_contains needs header")
			}
		case CheckJSONPath:
			if ch.Path == "" {
				issues = append(issues, at+": json_path needs path")
			}
		default:
			issues = append(issues, fmt.Sprintf("%s: unsupported check type %q", at, ch.Type))
		}
	}
	return issues
}
