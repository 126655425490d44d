package config

import (
	"reflect"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/torosent/vuramp/internal/runner"
	"github.com/torosent/vuramp/internal/threshold"
)

func TestAsDuration(t *testing.T) {
	tests := []struct {
		input interface{}
		want  time.Duration
	}{
		{time.Second, time.Second},
		{"1m", time.Minute},
		{10, 10 * time.Second}, // int treated as seconds
		{1.5, 1500 * time.Millisecond},
		{" 30s ", 30 * time.Second},
		{"", 0},
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asDuration(tt.input)
		if err != nil {
			t.Errorf("asDuration(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asDuration(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAsMillis(t *testing.T) {
	tests := []struct {
		input interface{}
		want  time.Duration
	}{
		{500, 500 * time.Millisecond},
		{1000.0, time.Second},
		{"2s", 2 * time.Second},
	}
	for _, tt := range tests {
		got, err := asMillis(tt.input)
		if err != nil {
			t.Errorf("asMillis(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asMillis(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAsStringSliceKeepsSpaces(t *testing.T) {
	got, err := asStringSlice("Welcome to FKS")
	if err != nil || !reflect.DeepEqual(got, []string{"Welcome to FKS"}) {
		t.Fatalf("asStringSlice(string) = %v, %v", got, err)
	}
}

func TestToStringKeyMap(t *testing.T) {
	got, err := toStringKeyMap(map[interface{}]interface{}{" Target ": 2})
	if err != nil || got["target"] != 2 {
		t.Fatalf("toStringKeyMap = %v, %v", got, err)
	}
	if _, err := toStringKeyMap("not a map"); err == nil {
		t.Fatal("expected error for a scalar")
	}
}

func TestAsIntSlice(t *testing.T) {
	got, err := asIntSlice([]interface{}{200, "302"})
	if err != nil || !reflect.DeepEqual(got, []int{200, 302}) {
		t.Fatalf("asIntSlice(list) = %v, %v", got, err)
	}
	got, err = asIntSlice(204)
	if err != nil || !reflect.DeepEqual(got, []int{204}) {
		t.Fatalf("asIntSlice(scalar) = %v, %v", got, err)
	}
}

func TestParseStage(t *testing.T) {
	tests := []struct {
		in      string
		want    runner.Stage
		wantErr bool
	}{
		{"30s:10", runner.Stage{Duration: 30 * time.Second, Target: 10}, false},
		{" 1m : 0 ", runner.Stage{Duration: time.Minute}, false},
		{"0s:5", runner.Stage{Target: 5}, false},
		{"30s", runner.Stage{}, true},
		{"abc:1", runner.Stage{}, true},
		{"30s:x", runner.Stage{}, true},
	}
	for _, tt := range tests {
		got, err := ParseStage(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStage(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStage(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseStages(t *testing.T) {
	stages, err := parseStages([]interface{}{
		map[string]interface{}{"duration": "1m", "target": 10},
		"30s:0",
	})
	if err != nil {
		t.Fatalf("parseStages() error = %v", err)
	}
	want := []runner.Stage{{Duration: time.Minute, Target: 10}, {Duration: 30 * time.Second}}
	if !reflect.DeepEqual(stages, want) {
		t.Errorf("stages = %+v, want %+v", stages, want)
	}
}

func TestParseThresholds(t *testing.T) {
	ths, err := parseThresholds(map[string]interface{}{
		"http_req_duration": []interface{}{"p(95)<500"},
		"errors":            "rate<0.1",
		"http_req_failed": []interface{}{
			map[string]interface{}{"threshold": "rate<0.01", "abort_on_fail": true, "delay_abort_eval": "10s"},
		},
	})
	if err != nil {
		t.Fatalf("parseThresholds() error = %v", err)
	}
	if got := ths["http_req_duration"]; len(got) != 1 || got[0].Expr != "p(95)<500" {
		t.Errorf("http_req_duration = %+v", got)
	}
	if got := ths["errors"]; len(got) != 1 || got[0].Expr != "rate<0.1" {
		t.Errorf("errors = %+v", got)
	}
	want := threshold.Spec{Expr: "rate<0.01", AbortOnFail: true, DelayAbortEval: 10 * time.Second}
	if got := ths["http_req_failed"]; len(got) != 1 || got[0] != want {
		t.Errorf("http_req_failed = %+v, want %+v", got, want)
	}
}

func TestParseSleep(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  runner.ThinkTime
	}{
		{"scalar", "2s", runner.FixedThinkTime(2 * time.Second)},
		{"zero", "0s", runner.ThinkTime{}},
		{"uniform", map[string]interface{}{"type": "uniform", "min": "1s", "max": "3s"},
			runner.UniformThinkTime(time.Second, 3*time.Second)},
		{"fixed map", map[string]interface{}{"type": "fixed", "duration": "1s"},
			runner.FixedThinkTime(time.Second)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSleep(tt.input)
			if err != nil {
				t.Fatalf("parseSleep() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("parseSleep() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestApplyConfigSettings(t *testing.T) {
	cfg := Defaults()
	settings := map[string]interface{}{
		"name":          "api",
		"base_urls":     map[string]interface{}{"default": "http://localhost:8000"},
		"graceful-stop": "5s",
		"maxrps":        50,
		"no_color":      true,
		"log_level":     "debug",
		"requests": []interface{}{
			map[string]interface{}{
				"name":       "health",
				"path":       "/health/",
				"headers":    map[string]interface{}{"accept": "application/json"},
				"trend":      "health_check_duration",
				"error_rate": "errors",
				"checks": []interface{}{
					map[string]interface{}{"name": "ok", "type": "status", "status": []interface{}{200, 302}},
					map[string]interface{}{"type": "duration", "max": 500},
				},
			},
		},
		"tracing": map[string]interface{}{"endpoint": "localhost:4317", "sample_rate": 0.5, "propagate": false},
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		t.Fatalf("applyConfigSettings() error = %v", err)
	}

	if cfg.Name != "api" || cfg.BaseURLs["default"] != "http://localhost:8000" {
		t.Errorf("name/base = %q %v", cfg.Name, cfg.BaseURLs)
	}
	if cfg.GracefulStop != 5*time.Second || cfg.MaxRPS != 50 || !cfg.NoColor || cfg.LogLevel != "debug" {
		t.Errorf("scalars not applied: %+v", cfg)
	}
	req := cfg.Requests[0]
	if req.Headers["Accept"] != "application/json" {
		t.Errorf("headers = %v", req.Headers)
	}
	if req.Trend != "health_check_duration" || req.ErrorRate != "errors" {
		t.Errorf("metric bindings = %q %q", req.Trend, req.ErrorRate)
	}
	if len(req.Checks) != 2 || !reflect.DeepEqual(req.Checks[0].Status, []int{200, 302}) || req.Checks[1].Max != 500*time.Millisecond {
		t.Errorf("checks = %+v", req.Checks)
	}
	if cfg.Tracing.Endpoint != "localhost:4317" || cfg.Tracing.SampleRate != 0.5 || cfg.Tracing.ShouldPropagate() {
		t.Errorf("tracing = %+v", cfg.Tracing)
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configureFlags(fs)
	err := fs.Parse([]string{
		"--stage", "10s:5", "--stage", "5s:0",
		"--base-url", "default=http://flag.example",
		"--threshold", "http_req_duration:p95 < 500",
		"--max-rps", "20",
		"--quiet",
		"--tracing-endpoint", "otel:4317",
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg := Defaults()
	cfg.Stages = []runner.Stage{{Duration: time.Hour, Target: 100}}
	cfg.BaseURLs["default"] = "http://file.example"
	if err := applyFlagOverrides(cfg, fs); err != nil {
		t.Fatalf("applyFlagOverrides() error = %v", err)
	}

	want := []runner.Stage{{Duration: 10 * time.Second, Target: 5}, {Duration: 5 * time.Second}}
	if !reflect.DeepEqual(cfg.Stages, want) {
		t.Errorf("stages = %+v, want %+v", cfg.Stages, want)
	}
	if cfg.BaseURLs["default"] != "http://flag.example" {
		t.Errorf("base url = %q", cfg.BaseURLs["default"])
	}
	if got := cfg.Thresholds["http_req_duration"]; len(got) != 1 || got[0].Expr != "p95<500" {
		t.Errorf("thresholds = %+v", cfg.Thresholds)
	}
	if cfg.MaxRPS != 20 || !cfg.Quiet || cfg.Tracing.Endpoint != "otel:4317" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("unset flag changed timeout to %s", cfg.Timeout)
	}
}

func TestLoader_LoadRejectsBadStage(t *testing.T) {
	if _, err := NewLoader().Load([]string{"--stage=oops"}); err == nil {
		t.Fatal("expected error for malformed stage")
	}
}
