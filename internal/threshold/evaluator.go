package threshold

import (
	"time"

	"github.com/torosent/vuramp/internal/metrics"
)

// Evaluator holds a run's thresholds and checks abortable ones mid-run.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{thresholds: thresholds}
}

// Thresholds returns the configured thresholds.
func (e *Evaluator) Thresholds() []Threshold { return e.thresholds }

// Evaluate checks every threshold against snap.
func (e *Evaluator) Evaluate(snap metrics.Snapshot) ([]Result, error) {
	return Evaluate(e.thresholds, snap)
}

// Abortable reports whether any threshold has AbortOnFail set.
func (e *Evaluator) Abortable() bool {
	for _, th := range e.thresholds {
		if th.AbortOnFail {
			return true
		}
	}
	return false
}

// CheckAbort evaluates the AbortOnFail thresholds whose delay has passed at
// elapsed and returns the first failure. Thresholds that cannot be evaluated
// never abort the run; they are reported at the end.
func (e *Evaluator) CheckAbort(snap metrics.Snapshot, elapsed time.Duration) (Result, bool) {
	for _, th := range e.thresholds {
		if !th.AbortOnFail || elapsed < th.DelayAbortEval {
			continue
		}
		res := evaluateOne(th, snap)
		if res.Err == nil && !res.Pass {
			return res, true
		}
	}
	return Result{}, false
}
