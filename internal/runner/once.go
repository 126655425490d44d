package runner

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/torosent/vuramp/internal/metrics"
	"github.com/torosent/vuramp/internal/workload"
)

// PanicError wraps a value recovered from a panicking workload.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("workload panic: %v", e.Value)
}

func (e *PanicError) FaultName() string { return "Workload panic" }

// RunOnce executes a single iteration of wl and records iterations,
// iteration_duration and iteration_failed. Errors and panics are recovered,
// tallied as workload faults and returned for logging only.
//
// An iteration cut short by a cancelled ctx is recorded as failed but not
// as a completed iteration.
func RunOnce(ctx context.Context, wl workload.Workload, sess *workload.Session, reg *metrics.Registry) error {
	b := reg.Builtins()

	ictx, endSpan := sess.BeginIteration(ctx)
	start := time.Now()
	err := safeIterate(ictx, wl, sess)
	elapsed := time.Since(start)
	endSpan(err)

	if ctxErr := ctx.Err(); ctxErr != nil {
		if err == nil {
			err = ctxErr
		}
		b.IterationFailed.Add(true)
		reg.RecordFault(err)
		return err
	}

	b.Iterations.Add(1)
	b.IterationDuration.Add(elapsed)
	b.IterationFailed.Add(err != nil)
	if err != nil {
		reg.RecordFault(err)
	}
	return err
}

func safeIterate(ctx context.Context, wl workload.Workload, sess *workload.Session) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return wl.Iterate(ctx, sess)
}
