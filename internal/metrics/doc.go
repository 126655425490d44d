// Package metrics provides the typed metric registry shared by every virtual user.
//
// A [Registry] owns a set of uniquely named metrics of three kinds:
//   - [Counter]: a monotonic sum (requests issued, bytes received)
//   - [Rate]: the fraction of true observations (failed requests, checks)
//   - [Trend]: a distribution of durations with percentile queries
//
// # Usage
//
//	reg := metrics.NewRegistry()
//	errorsRate, err := reg.NewRate("errors")
//	if err != nil {
//		return err // metrics.ErrDuplicateMetric
//	}
//
//	reg.Start()
//	errorsRate.Add(false)
//	reg.Builtins().HTTPReqDuration.Add(42 * time.Millisecond)
//	reg.Stop()
//
//	snap := reg.Snapshot()
//	p95 := snap.Metrics["http_req_duration"].Percentile(95)
//
// # Built-in Metrics
//
// [NewRegistry] pre-registers http_reqs, http_req_failed, http_req_duration,
// data_received, iterations, iteration_duration, iteration_failed and checks.
//
// # Percentiles
//
// Trends record into an HDR histogram with microsecond resolution and three
// significant digits over the range 1µs to 10 minutes. A percentile is the
// histogram's value at that quantile, clamped into the exact observed
// [min, max]. p(0) is always the exact minimum and p(100) the exact maximum;
// the average is computed from the exact sum. The method is deterministic, so
// the same samples always yield the same percentiles.
//
// # Thread Safety
//
// Counter and Rate use atomics. Trend guards its histogram with a mutex held
// only for the duration of a single insert or copy. [Registry.Snapshot] copies
// every metric and never blocks writers longer than one of those sections.
package metrics
