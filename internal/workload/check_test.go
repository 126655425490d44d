package workload_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/torosent/vuramp/internal/metrics"
	"github.com/torosent/vuramp/internal/workload"
)

func TestChecks(t *testing.T) {
	ok := &workload.Response{
		Status:   http.StatusOK,
		Header:   http.Header{"Content-Type": []string{"application/json; charset=utf-8"}},
		Body:     []byte(`{"status":"healthy","checks":{"db":"up"}}`),
		Duration: 120 * time.Millisecond,
	}
	transportErr := &workload.Response{Err: errors.New("connection refused")}

	bodyRe, err := workload.BodyMatches(`"status":"(\w+)"`)
	if err != nil {
		t.Fatalf("BodyMatches: %v", err)
	}

	tests := []struct {
		name     string
		check    workload.Check
		resp     *workload.Response
		want     bool
		wantName string
	}{
		{"status match", workload.StatusIn(200), ok, true, "status is 200"},
		{"status any of", workload.StatusIn(200, 302), &workload.Response{Status: 302}, true, "status is 200 or 302"},
		{"status mismatch", workload.StatusIn(201), ok, false, ""},
		{"status transport error", workload.StatusIn(0), transportErr, false, ""},
		{"duration below", workload.DurationBelow(time.Second), ok, true, "response time < 1000ms"},
		{"duration above", workload.DurationBelow(100 * time.Millisecond), ok, false, ""},
		{"body contains", workload.BodyContains("healthy"), ok, true, "body contains healthy"},
		{"body missing", workload.BodyContains("FKS"), ok, false, ""},
		{"header contains", workload.HeaderContains("Content-Type", "application/json"), ok, true, "Content-Type contains application/json"},
		{"header missing", workload.HeaderContains("X-Missing", "x"), ok, false, ""},
		{"json exists", workload.JSONPath("$.checks.db"), ok, true, "json $.checks.db exists"},
		{"json equals", workload.JSONPath("status", "healthy"), ok, true, "json status == healthy"},
		{"json not equal", workload.JSONPath("$.status", "down"), ok, false, ""},
		{"json absent", workload.JSONPath("$.nope"), ok, false, ""},
		{"json on transport error", workload.JSONPath("$"), transportErr, false, ""},
		{"regex", bodyRe, ok, true, ""},
		{"named", workload.Named("health ok", workload.StatusIn(200)), ok, true, "health ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.check.Check(tt.resp); got != tt.want {
				t.Errorf("Check() = %v, want %v", got, tt.want)
			}
			if tt.wantName != "" && tt.check.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", tt.check.Name(), tt.wantName)
			}
		})
	}
}

func TestBodyMatchesInvalidPattern(t *testing.T) {
	if _, err := workload.BodyMatches("("); err == nil {
		t.Fatal("expected compile error")
	}
}

func TestSessionCheckRecordsEveryOutcome(t *testing.T) {
	reg := metrics.NewRegistry()
	sess := workload.NewSession(1, reg, workload.SessionOptions{})
	resp := &workload.Response{Status: 500}

	panicky := workload.CheckFunc("panics", func(*workload.Response) bool { panic("bad check") })
	all := sess.Check(resp, workload.StatusIn(500), workload.StatusIn(200), panicky)
	if all {
		t.Fatal("expected overall failure")
	}

	snap := reg.Snapshot()
	if len(snap.Checks) != 3 {
		t.Fatalf("expected 3 tallies, got %+v", snap.Checks)
	}
	if snap.Checks[2].Name != "panics" || snap.Checks[2].Fails != 1 {
		t.Errorf("panicking check not recorded as failure: %+v", snap.Checks[2])
	}
	checks := snap.Metrics[metrics.Checks]
	if checks.Passes != 1 || checks.Fails != 2 {
		t.Errorf("checks rate passes/fails = %d/%d, want 1/2", checks.Passes, checks.Fails)
	}
}
