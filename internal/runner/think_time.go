package runner

import (
	"fmt"
	"math/rand"
	"time"
)

// ThinkKind selects how the pause between iterations is drawn.
type ThinkKind string

const (
	ThinkNone        ThinkKind = ""
	ThinkFixed       ThinkKind = "fixed"
	ThinkUniform     ThinkKind = "uniform"
	ThinkExponential ThinkKind = "exponential"
)

// ThinkTime is the pause a VU takes after each iteration.
//
// Fixed pauses Min. Uniform draws from [Min, Max]. Exponential draws with
// mean Min, capped at Max when Max is set.
type ThinkTime struct {
	Kind ThinkKind
	Min  time.Duration
	Max  time.Duration
}

// FixedThinkTime pauses d after every iteration.
func FixedThinkTime(d time.Duration) ThinkTime {
	return ThinkTime{Kind: ThinkFixed, Min: d, Max: d}
}

// UniformThinkTime pauses a random duration in [min, max].
func UniformThinkTime(min, max time.Duration) ThinkTime {
	return ThinkTime{Kind: ThinkUniform, Min: min, Max: max}
}

// Validate rejects negative or inverted ranges and unknown kinds.
func (t ThinkTime) Validate() error {
	if t.Min < 0 || t.Max < 0 {
		return fmt.Errorf("think time must not be negative")
	}
	switch t.Kind {
	case ThinkNone, ThinkFixed:
	case ThinkUniform:
		if t.Max < t.Min {
			return fmt.Errorf("think time max %s is below min %s", t.Max, t.Min)
		}
	case ThinkExponential:
		if t.Min <= 0 {
			return fmt.Errorf("exponential think time needs a positive mean")
		}
	default:
		return fmt.Errorf("unknown think time kind %q", t.Kind)
	}
	return nil
}

func (t ThinkTime) String() string {
	switch t.Kind {
	case ThinkFixed:
		return t.Min.String()
	case ThinkUniform:
		return fmt.Sprintf("%s-%s", t.Min, t.Max)
	case ThinkExponential:
		return fmt.Sprintf("exp(mean %s)", t.Min)
	default:
		return "none"
	}
}

// thinker draws pauses for one VU. It is not safe for concurrent use.
type thinker struct {
	tt  ThinkTime
	rng *rand.Rand
}

func newThinker(tt ThinkTime, seed int64) *thinker {
	return &thinker{tt: tt, rng: rand.New(rand.NewSource(seed))}
}

func (t *thinker) next() time.Duration {
	switch t.tt.Kind {
	case ThinkFixed:
		return t.tt.Min
	case ThinkUniform:
		span := t.tt.Max - t.tt.Min
		if span <= 0 {
			return t.tt.Min
		}
		return t.tt.Min + time.Duration(t.rng.Int63n(int64(span)+1))
	case ThinkExponential:
		d := time.Duration(t.rng.ExpFloat64() * float64(t.tt.Min))
		if t.tt.Max > 0 && d > t.tt.Max {
			d = t.tt.Max
		}
		return d
	default:
		return 0
	}
}
