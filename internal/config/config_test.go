package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/torosent/vuramp/internal/config"
	"github.com/torosent/vuramp/internal/runner"
	"github.com/torosent/vuramp/internal/threshold"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.NewLoader().Load([]string{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %s, want 30s", cfg.Timeout)
	}
	if cfg.GracefulStop != runner.DefaultGracefulStop {
		t.Errorf("GracefulStop = %s", cfg.GracefulStop)
	}
	if cfg.Tick != runner.DefaultTickInterval {
		t.Errorf("Tick = %s", cfg.Tick)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "console" {
		t.Errorf("log settings = %q %q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.Tracing.SampleRate != 1.0 || cfg.Tracing.Endpoint != "" {
		t.Errorf("tracing defaults = %+v", cfg.Tracing)
	}
}

const loadTestYAML = `
name: load-test
base_urls:
  default: http://localhost:8000
stages:
  - {duration: 30s, target: 10}
  - {duration: 1m, target: 50}
  - {duration: 30s, target: 0}
metrics:
  - {name: errors, type: rate}
  - {name: health_check_duration, type: trend}
thresholds:
  http_req_duration: ["p(95)<500"]
  http_req_failed: ["rate<0.01"]
  errors:
    - threshold: rate<0.1
      abort_on_fail: true
      delay_abort_eval: 10s
  health_check_duration: ["p(99)<1000"]
sleep: {type: uniform, min: 1s, max: 3s}
requests:
  - name: health
    path: /health/
    trend: health_check_duration
    error_rate: errors
    checks:
      - {name: health status is 200, type: status, status: [200]}
      - {name: health response time < 500ms, type: duration, max: 500}
      - {name: health response is JSON, type: header_contains, header: Content-Type, contains: application/json}
  - name: home
    path: /
    error_rate: errors
    checks:
      - {name: home page has content, type: body_contains, contains: FKS}
`

func TestLoadConfigFileYAML(t *testing.T) {
	path := writeFile(t, "load.yaml", loadTestYAML)

	cfg, err := config.NewLoader().Load([]string{"--config", path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if cfg.ConfigFile != path || cfg.Name != "load-test" {
		t.Errorf("header = %q %q", cfg.ConfigFile, cfg.Name)
	}
	if len(cfg.Stages) != 3 || cfg.Stages[1] != (runner.Stage{Duration: time.Minute, Target: 50}) {
		t.Errorf("stages = %+v", cfg.Stages)
	}
	if cfg.Sleep != runner.UniformThinkTime(time.Second, 3*time.Second) {
		t.Errorf("sleep = %+v", cfg.Sleep)
	}
	errSpec := cfg.Thresholds["errors"]
	if len(errSpec) != 1 || !errSpec[0].AbortOnFail || errSpec[0].DelayAbortEval != 10*time.Second {
		t.Errorf("errors threshold = %+v", errSpec)
	}
	if len(cfg.Requests) != 2 || cfg.Requests[0].Checks[2].Type != config.CheckHeaderContains {
		t.Errorf("requests = %+v", cfg.Requests)
	}
	if cfg.Requests[0].Method != "" {
		t.Errorf("method = %q, want empty (GET)", cfg.Requests[0].Method)
	}
}

func TestLoadConfigFileJSONWithFlagOverride(t *testing.T) {
	path := writeFile(t, "cfg.json", `{
		"base_url": "http://file.example",
		"stages": ["10s:2"],
		"timeout": "45s",
		"requests": [{"name": "root", "method": "post", "path": "/", "body": "{}"}]
	}`)

	cfg, err := config.NewLoader().Load([]string{"--config", path, "--timeout", "5s", "--stage", "1s:1"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BaseURLs[config.DefaultBase] != "http://file.example" {
		t.Errorf("base = %v", cfg.BaseURLs)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("flag did not override timeout: %s", cfg.Timeout)
	}
	if len(cfg.Stages) != 1 || cfg.Stages[0].Target != 1 {
		t.Errorf("flag did not replace stages: %+v", cfg.Stages)
	}
	if cfg.Requests[0].Method != "POST" {
		t.Errorf("method = %q, want POST", cfg.Requests[0].Method)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	if _, err := config.NewLoader().Load([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadHelp(t *testing.T) {
	_, err := config.NewLoader().Load([]string{"--help"})
	if !errors.Is(err, config.ErrHelpRequested) {
		t.Fatalf("expected ErrHelpRequested, got %v", err)
	}
}

func validConfig() config.Config {
	cfg := *config.Defaults()
	cfg.BaseURLs = map[string]string{"default": "http://localhost:8000"}
	cfg.Stages = []runner.Stage{{Duration: time.Second, Target: 1}}
	cfg.Requests = []config.RequestConfig{{Name: "health", Path: "/health/"}}
	cfg.Thresholds = map[string][]threshold.Spec{}
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"valid", func(*config.Config) {}, ""},
		{"no stages", func(c *config.Config) { c.Stages = nil }, "stages"},
		{"negative target", func(c *config.Config) { c.Stages[0].Target = -1 }, "stages"},
		{"no requests", func(c *config.Config) { c.Requests = nil }, "at least one request"},
		{"unknown base", func(c *config.Config) { c.Requests[0].Base = "other" }, `base url "other" is not defined`},
		{"relative base", func(c *config.Config) { c.BaseURLs["default"] = "localhost" }, "not an absolute URL"},
		{"bad threshold", func(c *config.Config) {
			c.Thresholds["http_req_duration"] = []threshold.Spec{{Expr: "p95 lt 5"}}
		}, "http_req_duration"},
		{"threshold on undefined metric", func(c *config.Config) {
			c.Thresholds["errors"] = []threshold.Spec{{Expr: "rate<0.1"}}
		}, "thresholds.errors: metric is not defined"},
		{"custom metric shadows builtin", func(c *config.Config) {
			c.Metrics = []config.MetricConfig{{Name: "checks", Type: "rate"}}
		}, "built-in"},
		{"bad metric type", func(c *config.Config) {
			c.Metrics = []config.MetricConfig{{Name: "x", Type: "gauge"}}
		}, "type must be"},
		{"trend binding to rate", func(c *config.Config) {
			c.Metrics = []config.MetricConfig{{Name: "errors", Type: "rate"}}
			c.Requests[0].Trend = "errors"
		}, "not a declared trend"},
		{"body and body_file", func(c *config.Config) {
			c.Requests[0].Body = "x"
			c.Requests[0].BodyFile = "y"
		}, "mutually exclusive"},
		{"bad check", func(c *config.Config) {
			c.Requests[0].Checks = []config.CheckConfig{{Type: "status"}}
		}, "status needs at least one code"},
		{"unknown check", func(c *config.Config) {
			c.Checks = []config.CheckConfig{{Type: "telepathy"}}
		}, "unsupported check type"},
		{"bad regex", func(c *config.Config) {
			c.Checks = []config.CheckConfig{{Type: "body_matches", Pattern: "("}}
		}, "valid pattern"},
		{"bad sleep", func(c *config.Config) { c.Sleep = runner.UniformThinkTime(3*time.Second, time.Second) }, "sleep"},
		{"bad sample rate", func(c *config.Config) { c.Tracing.SampleRate = 2 }, "sample_rate"},
		{"negative rps", func(c *config.Config) { c.MaxRPS = -1 }, "max_rps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			var verr config.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCollectsAllIssues(t *testing.T) {
	cfg := validConfig()
	cfg.Stages = nil
	cfg.Requests = nil
	cfg.Timeout = -time.Second

	var verr config.ValidationError
	if !errors.As(cfg.Validate(), &verr) {
		t.Fatal("expected ValidationError")
	}
	if len(verr.Issues()) < 3 {
		t.Errorf("issues = %v, want at least 3", verr.Issues())
	}
}

func TestResolveURL(t *testing.T) {
	cfg := validConfig()
	cfg.BaseURLs["exec"] = "http://execution.local/"

	tests := []struct {
		req  config.RequestConfig
		want string
	}{
		{config.RequestConfig{Path: "/health/"}, "http://localhost:8000/health/"},
		{config.RequestConfig{Path: "health"}, "http://localhost:8000/health"},
		{config.RequestConfig{}, "http://localhost:8000"},
		{config.RequestConfig{Base: "exec", Path: "/health"}, "http://execution.local/health"},
		{config.RequestConfig{URL: "http://abs.example/x", Path: "/ignored"}, "http://abs.example/x"},
	}
	for _, tt := range tests {
		got, err := cfg.ResolveURL(tt.req)
		if err != nil {
			t.Errorf("ResolveURL(%+v) error = %v", tt.req, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveURL(%+v) = %q, want %q", tt.req, got, tt.want)
		}
	}
}
