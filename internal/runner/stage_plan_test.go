package runner

import (
	"errors"
	"math/rand"
	"testing"
	"time"
)

func TestCompileStagePlanRamp(t *testing.T) {
	plan, err := compileStagePlan([]Stage{{Duration: 10 * time.Second, Target: 10}})
	if err != nil {
		t.Fatalf("compileStagePlan: %v", err)
	}
	if plan.duration != 10*time.Second {
		t.Fatalf("duration = %s", plan.duration)
	}

	tests := []struct {
		at   time.Duration
		want int
	}{
		{0, 0},
		{999 * time.Millisecond, 0},
		{time.Second, 1},
		{5 * time.Second, 5},
		{5500 * time.Millisecond, 5},
		{9990 * time.Millisecond, 9},
	}
	for _, tt := range tests {
		got, ok := plan.vusAt(tt.at)
		if !ok {
			t.Fatalf("vusAt(%s) reported end of plan", tt.at)
		}
		if got != tt.want {
			t.Errorf("vusAt(%s) = %d, want %d", tt.at, got, tt.want)
		}
	}
	if _, ok := plan.vusAt(10 * time.Second); ok {
		t.Error("plan should end at its total duration")
	}
}

func TestStagePlanFractionalTargetsFloor(t *testing.T) {
	plan, err := compileStagePlan([]Stage{
		{Duration: time.Minute, Target: 10},
		{Duration: 2 * time.Minute, Target: 25},
	})
	if err != nil {
		t.Fatal(err)
	}
	// Halfway through 10 -> 25 the ideal is 17.5.
	if got, _ := plan.vusAt(2 * time.Minute); got != 17 {
		t.Fatalf("vusAt(2m) = %d, want 17", got)
	}
	if got, _ := plan.vusAt(time.Minute); got != 10 {
		t.Fatalf("vusAt(1m) = %d, want 10", got)
	}
}

func TestStagePlanZeroDurationSnaps(t *testing.T) {
	plan, err := compileStagePlan([]Stage{
		{Duration: 0, Target: 5},
		{Duration: time.Second, Target: 5},
		{Duration: 0, Target: 1},
		{Duration: time.Second, Target: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := plan.vusAt(0); got != 5 {
		t.Errorf("vusAt(0) = %d, want 5", got)
	}
	if got, _ := plan.vusAt(time.Second); got != 1 {
		t.Errorf("vusAt(1s) = %d, want 1", got)
	}
	if plan.maxVUs != 5 {
		t.Errorf("maxVUs = %d, want 5", plan.maxVUs)
	}
}

func TestStagePlanTargetZeroDrains(t *testing.T) {
	plan, err := compileStagePlan([]Stage{
		{Duration: time.Second, Target: 10},
		{Duration: time.Second, Target: 0},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := plan.vusAt(1500 * time.Millisecond); got != 5 {
		t.Errorf("vusAt(1.5s) = %d, want 5", got)
	}
	if got, _ := plan.vusAt(1999 * time.Millisecond); got != 0 {
		t.Errorf("vusAt(1.999s) = %d, want 0", got)
	}
}

func TestCompileStagePlanValidation(t *testing.T) {
	tests := []struct {
		name   string
		stages []Stage
		want   error
	}{
		{"empty", nil, ErrNoStages},
		{"negative duration", []Stage{{Duration: -time.Second, Target: 1}}, ErrInvalidStage},
		{"negative target", []Stage{{Duration: time.Second, Target: 1}, {Duration: time.Second, Target: -1}}, ErrInvalidStage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileStagePlan(tt.stages)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	var stageErr *StageError
	err := ValidateStages([]Stage{{Duration: time.Second, Target: 1}, {Duration: time.Second, Target: -3}})
	if !errors.As(err, &stageErr) || stageErr.Index != 1 {
		t.Fatalf("expected StageError for index 1, got %v", err)
	}
}

// The desired count always lies between the segment's endpoints.
func TestStagePlanNeverOvershoots(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		n := rng.Intn(5) + 1
		stages := make([]Stage, n)
		for i := range stages {
			stages[i] = Stage{
				Duration: time.Duration(rng.Intn(3)) * time.Second,
				Target:   rng.Intn(40),
			}
		}
		plan, err := compileStagePlan(stages)
		if err != nil {
			t.Fatal(err)
		}
		for at := time.Duration(0); at < plan.duration; at += 37 * time.Millisecond {
			got, ok := plan.vusAt(at)
			if !ok {
				t.Fatalf("vusAt(%s) ended early for %v", at, stages)
			}
			seg := plan.segments[plan.stageAt(at)]
			lo, hi := seg.from, seg.to
			if lo > hi {
				lo, hi = hi, lo
			}
			if got < lo || got > hi {
				t.Fatalf("vusAt(%s) = %d outside [%d, %d] for %v", at, got, lo, hi, stages)
			}
		}
	}
}

func TestThinkerDraws(t *testing.T) {
	fixed := newThinker(FixedThinkTime(2*time.Second), 1)
	if got := fixed.next(); got != 2*time.Second {
		t.Errorf("fixed = %s", got)
	}

	uni := newThinker(UniformThinkTime(time.Second, 3*time.Second), 1)
	for i := 0; i < 200; i++ {
		got := uni.next()
		if got < time.Second || got > 3*time.Second {
			t.Fatalf("uniform draw %s outside [1s, 3s]", got)
		}
	}

	exp := newThinker(ThinkTime{Kind: ThinkExponential, Min: 100 * time.Millisecond, Max: 500 * time.Millisecond}, 1)
	for i := 0; i < 200; i++ {
		if got := exp.next(); got < 0 || got > 500*time.Millisecond {
			t.Fatalf("exponential draw %s outside cap", got)
		}
	}

	if got := newThinker(ThinkTime{}, 1).next(); got != 0 {
		t.Errorf("none = %s", got)
	}

	a, b := newThinker(UniformThinkTime(0, time.Second), 7), newThinker(UniformThinkTime(0, time.Second), 7)
	for i := 0; i < 10; i++ {
		if a.next() != b.next() {
			t.Fatal("same seed should give the same sequence")
		}
	}
}

func TestThinkTimeValidate(t *testing.T) {
	tests := []struct {
		tt      ThinkTime
		wantErr bool
	}{
		{ThinkTime{}, false},
		{FixedThinkTime(time.Second), false},
		{UniformThinkTime(time.Second, 3*time.Second), false},
		{UniformThinkTime(3*time.Second, time.Second), true},
		{FixedThinkTime(-time.Second), true},
		{ThinkTime{Kind: ThinkExponential}, true},
		{ThinkTime{Kind: "gaussian"}, true},
	}
	for _, tt := range tests {
		if err := tt.tt.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("Validate(%+v) error = %v, wantErr %v", tt.tt, err, tt.wantErr)
		}
	}
}
