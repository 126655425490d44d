package harness

import (
	"fmt"
	"net/http"

	"github.com/torosent/vuramp/internal/config"
	"github.com/torosent/vuramp/internal/httpclient"
	"github.com/torosent/vuramp/internal/metrics"
	"github.com/torosent/vuramp/internal/workload"
)

// BuildScenario turns the configured requests into a scenario whose metric
// bindings point at metrics already registered in reg. Global checks run
// after each request's own checks.
func BuildScenario(cfg *config.Config, reg *metrics.Registry) (*workload.Scenario, error) {
	global, err := buildChecks(cfg.Checks)
	if err != nil {
		return nil, fmt.Errorf("checks: %w", err)
	}

	steps := make([]workload.Step, 0, len(cfg.Requests))
	for idx, rc := range cfg.Requests {
		name := rc.Name
		if name == "" {
			name = fmt.Sprintf("request %d", idx+1)
		}
		target, err := cfg.ResolveURL(rc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		body, err := httpclient.NewBody(rc.Body, rc.BodyFile)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		method := rc.Method
		if method == "" {
			method = http.MethodGet
		}
		builder, err := httpclient.NewRequestBuilder(method, target, rc.Headers, body)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		checks, err := buildChecks(rc.Checks)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		step := workload.Step{
			Name:    name,
			Request: builder,
			Checks:  append(checks, global...),
		}
		if rc.Trend != "" {
			if step.Trend, err = reg.Trend(rc.Trend); err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
		}
		if rc.ErrorRate != "" {
			if step.ErrorRate, err = reg.Rate(rc.ErrorRate); err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
		}
		steps = append(steps, step)
	}
	return workload.NewScenario(steps...)
}

func buildChecks(cfgs []config.CheckConfig) ([]workload.Check, error) {
	checks := make([]workload.Check, 0, len(cfgs))
	for _, cc := range cfgs {
		c, err := buildCheck(cc)
		if err != nil {
			return nil, err
		}
		checks = append(checks, workload.Named(cc.Name, c))
	}
	return checks, nil
}

func buildCheck(cc config.CheckConfig) (workload.Check, error) {
	switch cc.Type {
	case config.CheckStatus:
		return workload.StatusIn(cc.Status...), nil
	case config.CheckDuration:
		return workload.DurationBelow(cc.Max), nil
	case config.CheckBodyContains:
		return workload.BodyContains(cc.Contains), nil
	case config.CheckBodyMatches:
		return workload.BodyMatches(cc.Pattern)
	case config.CheckHeaderContains:
		return workload.HeaderContains(cc.Header, cc.Contains), nil
	case config.CheckJSONPath:
		return workload.JSONPath(cc.Path, cc.Equals...), nil
	default:
		return nil, fmt.Errorf("unsupported check type %q", cc.Type)
	}
}
