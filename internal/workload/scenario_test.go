package workload_test

import (
	"context"
	"testing"

	"github.com/torosent/vuramp/internal/httpclient"
	"github.com/torosent/vuramp/internal/metrics"
	"github.com/torosent/vuramp/internal/workload"
)

func mustBuilder(t *testing.T, url string) *httpclient.RequestBuilder {
	t.Helper()
	b, err := httpclient.NewRequestBuilder("GET", url, nil, httpclient.Body{})
	if err != nil {
		t.Fatalf("NewRequestBuilder: %v", err)
	}
	return b
}

func TestScenarioRecordsCustomMetrics(t *testing.T) {
	srv := newTarget(t)
	reg := metrics.NewRegistry()
	errorsRate, _ := reg.NewRate("errors")
	healthTrend, _ := reg.NewTrend("health_check_duration")

	sc, err := workload.NewScenario(
		workload.Step{
			Name:      "health",
			Request:   mustBuilder(t, srv.URL+"/health/"),
			Checks:    []workload.Check{workload.StatusIn(200), workload.HeaderContains("Content-Type", "application/json")},
			Trend:     healthTrend,
			ErrorRate: errorsRate,
		},
		workload.Step{
			Name:      "home",
			Request:   mustBuilder(t, srv.URL+"/"),
			Checks:    []workload.Check{workload.BodyContains("FKS")},
			ErrorRate: errorsRate,
		},
		workload.Step{
			Name:      "admin",
			Request:   mustBuilder(t, srv.URL+"/admin/"),
			Checks:    []workload.Check{workload.StatusIn(200, 302)},
			ErrorRate: errorsRate,
		},
		workload.Step{
			Name:      "broken",
			Request:   mustBuilder(t, srv.URL+"/broken"),
			Checks:    []workload.Check{workload.StatusIn(200)},
			ErrorRate: errorsRate,
		},
	)
	if err != nil {
		t.Fatalf("NewScenario: %v", err)
	}

	sess := workload.NewSession(1, reg, workload.SessionOptions{Client: httpclient.NewClient(0)})
	if err := sc.Iterate(context.Background(), sess); err != nil {
		t.Fatalf("Iterate: %v", err)
	}

	snap := reg.Snapshot()
	if got := snap.Metrics[metrics.HTTPReqs].Count; got != 4 {
		t.Errorf("http_reqs = %d, want 4", got)
	}
	errs := snap.Metrics["errors"]
	if errs.Passes != 1 || errs.Fails != 3 {
		t.Errorf("errors passes/fails = %d/%d, want 1/3", errs.Passes, errs.Fails)
	}
	if got := snap.Metrics["health_check_duration"].Count; got != 1 {
		t.Errorf("health_check_duration count = %d, want 1", got)
	}
	if got := len(snap.Checks); got != 4 {
		t.Errorf("check tallies = %d, want 4", got)
	}
}

func TestScenarioStopsOnDoneContext(t *testing.T) {
	srv := newTarget(t)
	reg := metrics.NewRegistry()
	sc, _ := workload.NewScenario(workload.Step{Name: "home", Request: mustBuilder(t, srv.URL+"/")})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sc.Iterate(ctx, workload.NewSession(1, reg, workload.SessionOptions{})); err == nil {
		t.Fatal("expected context error")
	}
	if got := reg.Snapshot().Metrics[metrics.HTTPReqs].Count; got != 0 {
		t.Errorf("no request should be issued, got %d", got)
	}
}

func TestNewScenarioValidation(t *testing.T) {
	if _, err := workload.NewScenario(); err == nil {
		t.Error("expected error for empty scenario")
	}
	if _, err := workload.NewScenario(workload.Step{Name: "x"}); err == nil {
		t.Error("expected error for step without request")
	}
}
