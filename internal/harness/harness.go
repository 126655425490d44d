// Package harness assembles a load run from a validated configuration:
// registry, scenario, scheduler, live reporting and threshold evaluation.
package harness

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/vuramp/internal/config"
	"github.com/torosent/vuramp/internal/history"
	"github.com/torosent/vuramp/internal/httpclient"
	"github.com/torosent/vuramp/internal/metrics"
	"github.com/torosent/vuramp/internal/output"
	"github.com/torosent/vuramp/internal/promexport"
	"github.com/torosent/vuramp/internal/runner"
	"github.com/torosent/vuramp/internal/threshold"
	"github.com/torosent/vuramp/internal/tracing"
	"github.com/torosent/vuramp/internal/workload"
)

const (
	progressInterval   = time.Second
	abortCheckInterval = 2 * time.Second
	shutdownTimeout    = 5 * time.Second
)

// Harness runs one load test.
type Harness struct {
	cfg    *config.Config
	logger *zap.Logger

	workload       workload.Workload
	progressWriter io.Writer
	abortInterval  time.Duration
}

// Option customises a Harness.
type Option func(*Harness)

// WithWorkload replaces the scenario built from the configured requests.
func WithWorkload(wl workload.Workload) Option {
	return func(h *Harness) { h.workload = wl }
}

// WithProgressWriter sets where live progress is written. Defaults to stdout.
func WithProgressWriter(w io.Writer) Option {
	return func(h *Harness) { h.progressWriter = w }
}

// WithAbortInterval sets how often abort-on-fail thresholds are checked.
func WithAbortInterval(d time.Duration) Option {
	return func(h *Harness) { h.abortInterval = d }
}

// New returns a harness for cfg. cfg must already be validated.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) *Harness {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Harness{
		cfg:            cfg,
		logger:         logger,
		progressWriter: os.Stdout,
		abortInterval:  abortCheckInterval,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes the stage profile and returns the summary. Threshold
// evaluation problems are reported on Summary.ThresholdErr, not as an error;
// an error means the run could not start.
func (h *Harness) Run(ctx context.Context) (*output.Summary, error) {
	cfg := h.cfg

	reg := metrics.NewRegistry()
	for _, m := range cfg.Metrics {
		typ, ok := metrics.ParseType(m.Type)
		if !ok {
			return nil, fmt.Errorf("metric %s: unknown type %q", m.Name, m.Type)
		}
		if _, err := reg.Register(m.Name, typ); err != nil {
			return nil, err
		}
	}

	thresholds, err := threshold.ParseSet(cfg.Thresholds)
	if err != nil {
		return nil, err
	}
	evaluator := threshold.NewEvaluator(thresholds)

	wl := h.workload
	if wl == nil {
		sc, err := BuildScenario(cfg, reg)
		if err != nil {
			return nil, err
		}
		wl = sc
	}

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return nil, err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(sctx); err != nil {
			h.logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	var failures workload.FailureLogger
	if cfg.LogErrors {
		failures = workload.NewFailureLogger(h.logger)
		wl = workload.WithFailureLogging(wl, failures)
	}

	sessOpts := workload.SessionOptions{
		Client:     httpclient.NewClient(cfg.Timeout),
		Limiter:    workload.NewLimiter(cfg.MaxRPS),
		Tracer:     provider.Tracer(),
		Propagator: provider.Propagator(),
		Failures:   failures,
	}

	sched, err := runner.New(runner.Options{
		Stages:   cfg.Stages,
		Workload: wl,
		Registry: reg,
		NewSession: func(vu int) *workload.Session {
			return workload.NewSession(vu, reg, sessOpts)
		},
		ThinkTime:    cfg.Sleep,
		GracefulStop: cfg.GracefulStop,
		TickInterval: cfg.Tick,
		RandomSeed:   cfg.Seed,
		Logger:       h.logger,
	})
	if err != nil {
		return nil, err
	}

	if cfg.MetricsAddr != "" {
		srv, err := promexport.NewServer(cfg.MetricsAddr, reg, sched, h.logger)
		if err != nil {
			return nil, err
		}
		srv.Start()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				h.logger.Warn("metrics server shutdown failed", zap.Error(err))
			}
		}()
	}

	summary := &output.Summary{
		RunID:  history.NewRunID(),
		Name:   cfg.Name,
		Stages: cfg.Stages,
	}

	reg.Start()
	summary.StartedAt = time.Now()

	var progress *output.ProgressReporter
	if !cfg.Quiet && h.progressWriter != nil {
		progress = output.NewProgressReporter(sched, reg, progressInterval, h.progressWriter)
		progress.Start()
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		h.watchAbort(watchCtx, evaluator, reg, sched)
	}()

	res, runErr := sched.Run(ctx)
	stopWatch()
	<-watchDone
	if progress != nil {
		progress.Stop()
	}
	reg.Stop()
	summary.EndedAt = time.Now()
	if runErr != nil {
		return nil, runErr
	}

	summary.VUsMax = res.MaxVUs
	summary.Interrupted = res.Interrupted
	summary.Aborted = res.Aborted
	summary.AbortReason = res.AbortReason
	summary.Forced = res.Forced
	summary.Snapshot = reg.Snapshot()
	summary.Thresholds, summary.ThresholdErr = evaluator.Evaluate(summary.Snapshot)
	return summary, nil
}

// watchAbort periodically checks abort-on-fail thresholds and aborts the
// scheduler on the first failure.
func (h *Harness) watchAbort(ctx context.Context, ev *threshold.Evaluator, reg *metrics.Registry, sched *runner.Scheduler) {
	if !ev.Abortable() {
		return
	}
	ticker := time.NewTicker(h.abortInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, failed := ev.CheckAbort(reg.Snapshot(), sched.Elapsed())
			if !failed {
				continue
			}
			reason := fmt.Sprintf("threshold %s crossed (actual %g)", res.Threshold, res.Actual)
			h.logger.Warn("aborting run", zap.String("threshold", res.Threshold.String()), zap.Float64("actual", res.Actual))
			sched.Abort(reason)
			return
		}
	}
}
