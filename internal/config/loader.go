package config

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/torosent/vuramp/internal/runner"
	"github.com/torosent/vuramp/internal/threshold"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a Config.
func (l Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}
	return l.FromFlags(flagSet)
}

// FromFlags reads the --config file named in fs, if any, and applies the
// flags that were set on top of it.
func (Loader) FromFlags(fs *pflag.FlagSet) (*Config, error) {
	configPath := ""
	if f := fs.Lookup("config"); f != nil {
		configPath = strings.TrimSpace(f.Value.String())
	}

	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Defaults()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg, fs); err != nil {
		return nil, err
	}

	for i := range cfg.Requests {
		cfg.Requests[i].Method = strings.ToUpper(strings.TrimSpace(cfg.Requests[i].Method))
		cfg.Requests[i].BodyFile = strings.TrimSpace(cfg.Requests[i].BodyFile)
	}
	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "name"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("name: %w", err)
		}
		cfg.Name = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "baseurls", "base_urls", "base-urls"); ok {
		urls, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("base_urls: %w", err)
		}
		for k, v := range urls {
			cfg.BaseURLs[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	} else if raw, ok := lookupSetting(settings, "baseurl", "base_url", "base-url"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("base_url: %w", err)
		}
		cfg.BaseURLs[DefaultBase] = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "stages"); ok {
		stages, err := parseStages(raw)
		if err != nil {
			return fmt.Errorf("stages: %w", err)
		}
		cfg.Stages = stages
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		ths, err := parseThresholds(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = ths
	}

	if raw, ok := lookupSetting(settings, "metrics"); ok {
		ms, err := parseMetrics(raw)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		cfg.Metrics = ms
	}

	if raw, ok := lookupSetting(settings, "requests"); ok {
		reqs, err := parseRequests(raw)
		if err != nil {
			return fmt.Errorf("requests: %w", err)
		}
		cfg.Requests = reqs
	}

	if raw, ok := lookupSetting(settings, "checks"); ok {
		checks, err := parseChecks(raw)
		if err != nil {
			return fmt.Errorf("checks: %w", err)
		}
		cfg.Checks = checks
	}

	if raw, ok := lookupSetting(settings, "sleep", "think_time", "think-time"); ok {
		tt, err := parseSleep(raw)
		if err != nil {
			return fmt.Errorf("sleep: %w", err)
		}
		cfg.Sleep = tt
	}

	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = dur
	}

	if raw, ok := lookupSetting(settings, "gracefulstop", "graceful_stop", "graceful-stop"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("graceful_stop: %w", err)
		}
		cfg.GracefulStop = dur
	}

	if raw, ok := lookupSetting(settings, "maxrps", "max_rps", "max-rps"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("max_rps: %w", err)
		}
		cfg.MaxRPS = val
	}

	if raw, ok := lookupSetting(settings, "summaryexport", "summary_export", "summary-export"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("summary_export: %w", err)
		}
		cfg.SummaryExport = val
	}

	boolSettings := []struct {
		name string
		dst  *bool
	}{
		{"no_color", &cfg.NoColor},
		{"quiet", &cfg.Quiet},
		{"log_errors", &cfg.LogErrors},
	}
	for _, s := range boolSettings {
		if raw, ok := lookupSetting(settings, spellings(s.name)...); ok {
			val, err := asBool(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", s.name, err)
			}
			*s.dst = val
		}
	}

	stringSettings := []struct {
		name string
		dst  *string
	}{
		{"log_level", &cfg.LogLevel},
		{"log_format", &cfg.LogFormat},
		{"metrics_addr", &cfg.MetricsAddr},
		{"history_db", &cfg.HistoryDB},
	}
	for _, s := range stringSettings {
		if raw, ok := lookupSetting(settings, spellings(s.name)...); ok {
			val, err := asString(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", s.name, err)
			}
			*s.dst = strings.TrimSpace(val)
		}
	}

	if raw, ok := lookupSetting(settings, "seed"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		cfg.Seed = int64(val)
	}

	if raw, ok := lookupSetting(settings, "tick"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("tick: %w", err)
		}
		cfg.Tick = dur
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := applyTracingSettings(cfg, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	return nil
}

// parseStages accepts a list of {duration, target} maps or "30s:10" strings.
func parseStages(value interface{}) ([]runner.Stage, error) {
	items, err := toInterfaceSlice(value)
	if err != nil {
		return nil, err
	}
	stages := make([]runner.Stage, 0, len(items))
	for idx, item := range items {
		if s, ok := item.(string); ok {
			st, err := ParseStage(s)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", idx, err)
			}
			stages = append(stages, st)
			continue
		}
		settings, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		var st runner.Stage
		if raw, ok := lookupSetting(settings, "duration"); ok {
			if st.Duration, err = asDuration(raw); err != nil {
				return nil, fmt.Errorf("index %d: duration: %w", idx, err)
			}
		}
		if raw, ok := lookupSetting(settings, "target"); ok {
			if st.Target, err = asInt(raw); err != nil {
				return nil, fmt.Errorf("index %d: target: %w", idx, err)
			}
		}
		stages = append(stages, st)
	}
	return stages, nil
}

// ParseStage parses the "duration:target" shorthand, e.g. "30s:10".
func ParseStage(s string) (runner.Stage, error) {
	dur, target, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return runner.Stage{}, fmt.Errorf("stage %q: expected duration:target", s)
	}
	d, err := asDuration(dur)
	if err != nil {
		return runner.Stage{}, fmt.Errorf("stage %q: %w", s, err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(target))
	if err != nil {
		return runner.Stage{}, fmt.Errorf("stage %q: target: %w", s, err)
	}
	return runner.Stage{Duration: d, Target: n}, nil
}

// parseThresholds accepts metric → expression, list of expressions, or list
// of {threshold, abort_on_fail, delay_abort_eval} objects.
func parseThresholds(value interface{}) (map[string][]threshold.Spec, error) {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]threshold.Spec, len(settings))
	for metric, raw := range settings {
		var items []interface{}
		if s, ok := raw.(string); ok {
			items = []interface{}{s}
		} else if items, err = toInterfaceSlice(raw); err != nil {
			return nil, fmt.Errorf("%s: %w", metric, err)
		}
		for idx, item := range items {
			spec, err := buildThresholdSpec(item)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", metric, idx, err)
			}
			out[metric] = append(out[metric], spec)
		}
	}
	return out, nil
}

func buildThresholdSpec(item interface{}) (threshold.Spec, error) {
	if s, ok := item.(string); ok {
		return threshold.Spec{Expr: s}, nil
	}
	settings, err := toStringKeyMap(item)
	if err != nil {
		return threshold.Spec{}, err
	}
	var spec threshold.Spec
	if raw, ok := lookupSetting(settings, "threshold", "expr"); ok {
		if spec.Expr, err = asString(raw); err != nil {
			return spec, err
		}
	}
	if raw, ok := lookupSetting(settings, "abortonfail", "abort_on_fail", "abort-on-fail"); ok {
		if spec.AbortOnFail, err = asBool(raw); err != nil {
			return spec, fmt.Errorf("abort_on_fail: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "delayaborteval", "delay_abort_eval", "delay-abort-eval"); ok {
		if spec.DelayAbortEval, err = asDuration(raw); err != nil {
			return spec, fmt.Errorf("delay_abort_eval: %w", err)
		}
	}
	return spec, nil
}

func parseMetrics(value interface{}) ([]MetricConfig, error) {
	items, err := toInterfaceSlice(value)
	if err != nil {
		return nil, err
	}
	out := make([]MetricConfig, 0, len(items))
	for idx, item := range items {
		settings, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		var m MetricConfig
		if raw, ok := lookupSetting(settings, "name"); ok {
			m.Name, _ = asString(raw)
		}
		if raw, ok := lookupSetting(settings, "type"); ok {
			m.Type, _ = asString(raw)
		}
		out = append(out, m)
	}
	return out, nil
}

func parseRequests(value interface{}) ([]RequestConfig, error) {
	items, err := toInterfaceSlice(value)
	if err != nil {
		return nil, err
	}
	out := make([]RequestConfig, 0, len(items))
	for idx, item := range items {
		settings, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		req, err := buildRequest(settings)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		out = append(out, req)
	}
	return out, nil
}

func buildRequest(settings map[string]interface{}) (RequestConfig, error) {
	var req RequestConfig
	strFields := []struct {
		dst  *string
		keys []string
	}{
		{&req.Name, []string{"name"}},
		{&req.Method, []string{"method"}},
		{&req.Base, []string{"base"}},
		{&req.Path, []string{"path"}},
		{&req.URL, []string{"url"}},
		{&req.Body, []string{"body"}},
		{&req.BodyFile, []string{"bodyfile", "body_file", "body-file"}},
		{&req.Trend, []string{"trend"}},
		{&req.ErrorRate, []string{"errorrate", "error_rate", "error-rate"}},
	}
	for _, f := range strFields {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asString(raw)
			if err != nil {
				return req, fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = val
		}
	}
	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := asStringMap(raw)
		if err != nil {
			return req, fmt.Errorf("headers: %w", err)
		}
		req.Headers = make(map[string]string, len(hdrs))
		for k, v := range hdrs {
			req.Headers[http.CanonicalHeaderKey(k)] = v
		}
	}
	if raw, ok := lookupSetting(settings, "checks"); ok {
		checks, err := parseChecks(raw)
		if err != nil {
			return req, fmt.Errorf("checks: %w", err)
		}
		req.Checks = checks
	}
	return req, nil
}

func parseChecks(value interface{}) ([]CheckConfig, error) {
	items, err := toInterfaceSlice(value)
	if err != nil {
		return nil, err
	}
	out := make([]CheckConfig, 0, len(items))
	for idx, item := range items {
		settings, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		ch, err := buildCheck(settings)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		out = append(out, ch)
	}
	return out, nil
}

func buildCheck(settings map[string]interface{}) (CheckConfig, error) {
	var ch CheckConfig
	var err error
	if raw, ok := lookupSetting(settings, "name"); ok {
		ch.Name, _ = asString(raw)
	}
	if raw, ok := lookupSetting(settings, "type"); ok {
		typ, _ := asString(raw)
		ch.Type = CheckType(strings.ToLower(strings.TrimSpace(typ)))
	}
	if raw, ok := lookupSetting(settings, "status"); ok {
		if ch.Status, err = asIntSlice(raw); err != nil {
			return ch, fmt.Errorf("status: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "max"); ok {
		if ch.Max, err = asMillis(raw); err != nil {
			return ch, fmt.Errorf("max: %w", err)
		}
	}
	for key, dst := range map[string]*string{
		"contains": &ch.Contains,
		"header":   &ch.Header,
		"pattern":  &ch.Pattern,
		"path":     &ch.Path,
	} {
		if raw, ok := lookupSetting(settings, key); ok {
			*dst, _ = asString(raw)
		}
	}
	if raw, ok := lookupSetting(settings, "equals"); ok {
		if ch.Equals, err = asStringSlice(raw); err != nil {
			return ch, fmt.Errorf("equals: %w", err)
		}
	}
	return ch, nil
}

// parseSleep accepts a duration (fixed pause) or a {type, min, max} map.
func parseSleep(value interface{}) (runner.ThinkTime, error) {
	switch value.(type) {
	case map[string]interface{}, map[interface{}]interface{}:
	default:
		d, err := asDuration(value)
		if err != nil {
			return runner.ThinkTime{}, err
		}
		if d == 0 {
			return runner.ThinkTime{}, nil
		}
		return runner.FixedThinkTime(d), nil
	}

	settings, err := toStringKeyMap(value)
	if err != nil {
		return runner.ThinkTime{}, err
	}
	var tt runner.ThinkTime
	if raw, ok := lookupSetting(settings, "type", "kind"); ok {
		kind, _ := asString(raw)
		tt.Kind = runner.ThinkKind(strings.ToLower(strings.TrimSpace(kind)))
	}
	if raw, ok := lookupSetting(settings, "min", "duration"); ok {
		if tt.Min, err = asDuration(raw); err != nil {
			return tt, fmt.Errorf("min: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "max"); ok {
		if tt.Max, err = asDuration(raw); err != nil {
			return tt, fmt.Errorf("max: %w", err)
		}
	}
	if tt.Kind == runner.ThinkFixed && tt.Max == 0 {
		tt.Max = tt.Min
	}
	return tt, nil
}

func applyTracingSettings(cfg *Config, value interface{}) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	t := &cfg.Tracing
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		t.Endpoint, _ = asString(raw)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		t.Protocol, _ = asString(raw)
	}
	if raw, ok := lookupSetting(settings, "servicename", "service_name", "service-name"); ok {
		t.ServiceName, _ = asString(raw)
	}
	if raw, ok := lookupSetting(settings, "samplerate", "sample_rate", "sample-rate"); ok {
		if t.SampleRate, err = asFloat64(raw); err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		if t.Insecure, err = asBool(raw); err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("propagate: %w", err)
		}
		t.Propagate = &val
	}
	return nil
}
