package runner

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Stage ramps the virtual-user count linearly to Target over Duration.
type Stage struct {
	Duration time.Duration
	Target   int
}

func (s Stage) String() string {
	return fmt.Sprintf("%s:%d", s.Duration, s.Target)
}

var (
	// ErrInvalidStage marks a stage with a negative duration or target.
	ErrInvalidStage = errors.New("invalid stage")
	// ErrNoStages is returned when the profile is empty.
	ErrNoStages = errors.New("at least one stage is required")
)

// StageError reports which stage failed validation.
type StageError struct {
	Index  int
	Stage  Stage
	Reason string
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %d (%s): %s", e.Index+1, e.Stage, e.Reason)
}

func (e *StageError) Unwrap() error { return ErrInvalidStage }

// ValidateStages checks a stage profile without compiling it.
func ValidateStages(stages []Stage) error {
	_, err := compileStagePlan(stages)
	return err
}

// TotalDuration sums the stage durations.
func TotalDuration(stages []Stage) time.Duration {
	var total time.Duration
	for _, s := range stages {
		total += s.Duration
	}
	return total
}

type stagePlan struct {
	segments []stageSegment
	duration time.Duration
	maxVUs   int
}

type stageSegment struct {
	start    time.Duration
	duration time.Duration
	from     int
	to       int
}

// compileStagePlan turns stages into absolute segments. Each segment ramps
// from the previous stage's target; the first ramps from zero.
func compileStagePlan(stages []Stage) (*stagePlan, error) {
	if len(stages) == 0 {
		return nil, ErrNoStages
	}

	plan := &stagePlan{}
	var offset time.Duration
	from := 0
	for i, st := range stages {
		switch {
		case st.Duration < 0:
			return nil, &StageError{Index: i, Stage: st, Reason: "duration must not be negative"}
		case st.Target < 0:
			return nil, &StageError{Index: i, Stage: st, Reason: "target must not be negative"}
		}
		plan.segments = append(plan.segments, stageSegment{
			start:    offset,
			duration: st.Duration,
			from:     from,
			to:       st.Target,
		})
		if st.Target > plan.maxVUs {
			plan.maxVUs = st.Target
		}
		offset += st.Duration
		from = st.Target
	}
	plan.duration = offset
	return plan, nil
}

// vusAt returns the desired VU count at elapsed, floored to an integer.
// It reports false once the plan has ended.
func (p *stagePlan) vusAt(elapsed time.Duration) (int, bool) {
	if p == nil || elapsed >= p.duration {
		return 0, false
	}
	if elapsed < 0 {
		elapsed = 0
	}
	for _, seg := range p.segments {
		// Zero-duration segments snap: the next segment starts from their target.
		if seg.duration <= 0 || elapsed >= seg.start+seg.duration {
			continue
		}
		if seg.from == seg.to {
			return seg.to, true
		}
		progress := float64(elapsed-seg.start) / float64(seg.duration)
		if progress < 0 {
			progress = 0
		} else if progress > 1 {
			progress = 1
		}
		v := float64(seg.from) + float64(seg.to-seg.from)*progress
		return int(math.Floor(v)), true
	}
	return 0, false
}

// stageAt returns the 0-based index of the stage running at elapsed.
func (p *stagePlan) stageAt(elapsed time.Duration) int {
	if p == nil {
		return 0
	}
	for i, seg := range p.segments {
		if seg.duration > 0 && elapsed < seg.start+seg.duration {
			return i
		}
	}
	return len(p.segments) - 1
}
