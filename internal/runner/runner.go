package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrAlreadyStarted is returned when Run is called more than once.
var ErrAlreadyStarted = errors.New("scheduler already started")

// Result summarises a scheduler run.
type Result struct {
	Duration   time.Duration
	MaxVUs     int
	Iterations int64
	// Interrupted is set when the parent context was cancelled.
	Interrupted bool
	Aborted     bool
	AbortReason string
	// Forced is set when in-flight iterations outlived the graceful stop
	// and were cancelled.
	Forced bool
}

// Scheduler ramps virtual users through a stage profile.
type Scheduler struct {
	opt  Options
	plan *stagePlan

	started    atomic.Bool
	startTime  atomic.Int64
	active     atomic.Int64
	iterations atomic.Int64

	abortOnce   sync.Once
	abortCh     chan struct{}
	abortReason atomic.Value
}

// New validates the options and compiles the stage profile. Invalid stages
// are reported as a *StageError before any VU starts.
func New(opt Options) (*Scheduler, error) {
	plan, err := compileStagePlan(opt.Stages)
	if err != nil {
		return nil, err
	}
	if err := opt.validate(); err != nil {
		return nil, err
	}
	opt.normalize()
	return &Scheduler{opt: opt, plan: plan, abortCh: make(chan struct{})}, nil
}

// ActiveVUs returns the number of VUs not yet told to stop.
func (s *Scheduler) ActiveVUs() int { return int(s.active.Load()) }

// Iterations returns the number of iterations run so far.
func (s *Scheduler) Iterations() int64 { return s.iterations.Load() }

// Elapsed returns the time since Run started.
func (s *Scheduler) Elapsed() time.Duration {
	start := s.startTime.Load()
	if start == 0 {
		return 0
	}
	return time.Since(time.Unix(0, start))
}

// TotalDuration is the sum of the stage durations.
func (s *Scheduler) TotalDuration() time.Duration { return s.plan.duration }

// CurrentStage returns the 1-based index of the running stage.
func (s *Scheduler) CurrentStage() int { return s.plan.stageAt(s.Elapsed()) + 1 }

// StageCount returns the number of stages.
func (s *Scheduler) StageCount() int { return len(s.plan.segments) }

// Abort ends the run early with a graceful drain. Only the first reason is kept.
func (s *Scheduler) Abort(reason string) {
	s.abortOnce.Do(func() {
		s.abortReason.Store(reason)
		close(s.abortCh)
	})
}

// Run drives the stage profile to completion. Cancelling ctx stops the run
// gracefully; in-flight iterations keep running until the graceful stop
// expires, after which they are cancelled.
func (s *Scheduler) Run(ctx context.Context) (Result, error) {
	if !s.started.CompareAndSwap(false, true) {
		return Result{}, ErrAlreadyStarted
	}
	log := s.opt.Logger

	start := time.Now()
	s.startTime.Store(start.UnixNano())

	// Iterations outlive the parent so a SIGINT drains instead of cutting requests.
	iterCtx, hardCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer hardCancel()

	var (
		res    Result
		wg     sync.WaitGroup
		pool   []*virtualUser
		nextID int
	)

	adjust := func(desired int) {
		for len(pool) < desired {
			nextID++
			vu := newVirtualUser(nextID)
			pool = append(pool, vu)
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.loop(iterCtx, vu)
			}()
		}
		// Most recently started VUs drain first.
		for len(pool) > desired {
			last := len(pool) - 1
			pool[last].stop()
			pool[last] = nil
			pool = pool[:last]
		}
		s.active.Store(int64(len(pool)))
		if len(pool) > res.MaxVUs {
			res.MaxVUs = len(pool)
		}
	}

	if desired, ok := s.plan.vusAt(0); ok {
		adjust(desired)
	}

	ticker := time.NewTicker(s.opt.TickInterval)
	end := time.NewTimer(s.plan.duration)
	defer ticker.Stop()
	defer end.Stop()

	log.Info("run started",
		zap.Int("stages", len(s.plan.segments)),
		zap.Duration("duration", s.plan.duration),
		zap.Int("max_target", s.plan.maxVUs),
	)

ramp:
	for {
		select {
		case <-ticker.C:
			if desired, ok := s.plan.vusAt(time.Since(start)); ok {
				adjust(desired)
			}
		case <-end.C:
			break ramp
		case <-ctx.Done():
			res.Interrupted = true
			log.Warn("run interrupted, draining virtual users")
			break ramp
		case <-s.abortCh:
			res.Aborted = true
			res.AbortReason, _ = s.abortReason.Load().(string)
			log.Warn("run aborted, draining virtual users", zap.String("reason", res.AbortReason))
			break ramp
		}
	}

	adjust(0)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	grace := time.NewTimer(s.opt.GracefulStop)
	defer grace.Stop()
	select {
	case <-done:
	case <-grace.C:
		res.Forced = true
		log.Warn("graceful stop expired, cancelling in-flight iterations",
			zap.Duration("graceful_stop", s.opt.GracefulStop))
		hardCancel()
		hard := time.NewTimer(s.opt.HardStopGrace)
		defer hard.Stop()
		select {
		case <-done:
		case <-hard.C:
			log.Error("virtual users did not stop after cancellation")
		}
	}

	res.Duration = time.Since(start)
	res.Iterations = s.iterations.Load()
	log.Info("run finished",
		zap.Duration("duration", res.Duration),
		zap.Int64("iterations", res.Iterations),
		zap.Int("max_vus", res.MaxVUs),
	)
	return res, nil
}
