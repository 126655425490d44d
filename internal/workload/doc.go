// Package workload defines what a virtual user does in one iteration.
//
// A [Workload] receives a per-VU [Session]. The session issues HTTP requests,
// times them and feeds the built-in request metrics; [Session.Check] records
// named check outcomes. Workloads can be written in Go:
//
//	wl := workload.Func(func(ctx context.Context, s *workload.Session) error {
//		resp := s.Get(ctx, base+"/health/")
//		s.Check(resp, workload.StatusIn(200), workload.DurationBelow(time.Second))
//		return nil
//	})
//
// or assembled from configuration as a [Scenario] of request steps, each with
// its own checks and optional custom Trend and Rate metrics.
//
// HTTP error statuses are not iteration failures. A workload fails an
// iteration only by returning an error or panicking.
package workload
