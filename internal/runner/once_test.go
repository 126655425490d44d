package runner_test

import (
	"context"
	"errors"
	"testing"

	"github.com/torosent/vuramp/internal/metrics"
	"github.com/torosent/vuramp/internal/runner"
	"github.com/torosent/vuramp/internal/workload"
)

func TestRunOnce(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name       string
		wl         workload.Func
		wantErr    bool
		wantPanic  bool
		wantFailed int64
	}{
		{"success", func(context.Context, *workload.Session) error { return nil }, false, false, 0},
		{"error", func(context.Context, *workload.Session) error { return boom }, true, false, 1},
		{"panic", func(context.Context, *workload.Session) error { panic("nil map") }, true, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := metrics.NewRegistry()
			sess := workload.NewSession(1, reg, workload.SessionOptions{})

			err := runner.RunOnce(context.Background(), tt.wl, sess, reg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("RunOnce error = %v, wantErr %v", err, tt.wantErr)
			}
			var panicErr *runner.PanicError
			if errors.As(err, &panicErr) != tt.wantPanic {
				t.Fatalf("PanicError = %v, want %v", err, tt.wantPanic)
			}

			snap := reg.Snapshot()
			if got := snap.Metrics[metrics.Iterations].Count; got != 1 {
				t.Errorf("iterations = %d, want 1", got)
			}
			if got := snap.Metrics[metrics.IterationDuration].Count; got != 1 {
				t.Errorf("iteration_duration count = %d, want 1", got)
			}
			if got := snap.Metrics[metrics.IterationFailed].Passes; got != tt.wantFailed {
				t.Errorf("iteration_failed = %d, want %d", got, tt.wantFailed)
			}
			if tt.wantPanic && snap.Faults["Workload panic"] != 1 {
				t.Errorf("fault breakdown = %v", snap.Faults)
			}
		})
	}
}

func TestRunOnceCancelledContext(t *testing.T) {
	reg := metrics.NewRegistry()
	sess := workload.NewSession(1, reg, workload.SessionOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runner.RunOnce(ctx, workload.Func(func(ctx context.Context, _ *workload.Session) error {
		return nil
	}), sess, reg)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	snap := reg.Snapshot()
	if snap.Metrics[metrics.Iterations].Count != 0 {
		t.Error("cancelled iteration counted as completed")
	}
	if snap.Metrics[metrics.IterationFailed].Passes != 1 {
		t.Error("cancelled iteration not counted as failed")
	}
}
