// Package runner drives virtual users through a staged load profile.
//
// A [Scheduler] compiles []Stage into a plan of linear ramps. Every tick
// (100ms by default) it computes the desired VU count, floored to an integer,
// and starts VUs or asks the most recently started ones to stop. Each VU
// loops [RunOnce] followed by a think-time pause; a stop request is only
// honoured between iterations.
//
//	sched, err := runner.New(runner.Options{
//		Stages: []runner.Stage{
//			{Duration: 30 * time.Second, Target: 10},
//			{Duration: time.Minute, Target: 10},
//			{Duration: 30 * time.Second, Target: 0},
//		},
//		Workload:  wl,
//		Registry:  reg,
//		ThinkTime: runner.FixedThinkTime(2 * time.Second),
//	})
//	if err != nil {
//		return err // *runner.StageError wraps runner.ErrInvalidStage
//	}
//	res, err := sched.Run(ctx)
//
// # Termination
//
// After the last stage, or on [Scheduler.Abort] or parent cancellation, every
// VU is told to stop. In-flight iterations get GracefulStop to finish; then
// their context is cancelled and their requests are recorded as failures.
//
// # Workload Faults
//
// [RunOnce] recovers errors and panics from the workload, counts them in
// iteration_failed and the registry's fault breakdown, and never lets them
// reach the scheduler.
package runner
