package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/torosent/vuramp/internal/metrics"
)

// RenderOptions controls the text report.
type RenderOptions struct {
	// Color wraps pass/fail markers in ANSI colour codes.
	Color bool
}

const (
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

// Render produces the human-readable report and the structured document
// for s. The summary is not modified.
func Render(s *Summary, opts RenderOptions) (string, Document) {
	var b strings.Builder
	mark := func(ok bool) string {
		sym, col := "✓", ansiGreen
		if !ok {
			sym, col = "✗", ansiRed
		}
		if opts.Color {
			return col + sym + ansiReset
		}
		return sym
	}

	b.WriteString("\n--- Performance Test Summary ---\n")
	if s.Name != "" {
		fmt.Fprintf(&b, "Scenario:       %s\n", s.Name)
	}
	if s.RunID != "" {
		fmt.Fprintf(&b, "Run ID:         %s\n", s.RunID)
	}
	fmt.Fprintf(&b, "Duration:       %s\n", s.Duration().Round(time.Millisecond))
	fmt.Fprintf(&b, "Max VUs:        %d\n", s.VUsMax)
	if len(s.Stages) > 0 {
		parts := make([]string, len(s.Stages))
		for i, st := range s.Stages {
			parts[i] = st.String()
		}
		fmt.Fprintf(&b, "Stages:         %s\n", strings.Join(parts, ", "))
	}
	switch {
	case s.Aborted:
		fmt.Fprintf(&b, "Status:         aborted (%s)\n", s.AbortReason)
	case s.Interrupted:
		b.WriteString("Status:         interrupted\n")
	}
	if s.Forced {
		b.WriteString("Note:           some iterations were cut off after the graceful stop\n")
	}

	snap := s.Snapshot
	if reqs, ok := snap.Metric(metrics.HTTPReqs); ok && reqs.Count > 0 {
		b.WriteString("\nHTTP\n")
		fmt.Fprintf(&b, "  Total Requests:   %d\n", reqs.Count)
		fmt.Fprintf(&b, "  Requests/sec:     %.2f\n", reqs.PerSecond())
		if failed, ok := snap.Metric(metrics.HTTPReqFailed); ok {
			fmt.Fprintf(&b, "  Failed:           %.2f%% (%d)\n", failed.Rate()*100, failed.Passes)
		}
		if dur, ok := snap.Metric(metrics.HTTPReqDuration); ok && dur.Count > 0 {
			fmt.Fprintf(&b, "  Avg Latency:      %.2fms\n", msf(dur.Avg()))
			fmt.Fprintf(&b, "  P95 Latency:      %.2fms\n", msf(dur.Percentile(95)))
			fmt.Fprintf(&b, "  P99 Latency:      %.2fms\n", msf(dur.Percentile(99)))
		}
	}

	builtin, custom := sortedMetricNames(snap)
	if len(custom) > 0 {
		b.WriteString("\nCustom Metrics\n")
		for _, name := range custom {
			writeMetricLine(&b, snap.Metrics[name])
		}
	}
	if len(builtin) > 0 {
		b.WriteString("\nAll Metrics\n")
		for _, name := range builtin {
			writeMetricLine(&b, snap.Metrics[name])
		}
	}

	if len(s.Thresholds) > 0 || s.ThresholdErr != nil {
		b.WriteString("\nThresholds\n")
		for _, r := range s.Thresholds {
			if r.Err != nil {
				fmt.Fprintf(&b, "  %s %s: %v\n", mark(false), r.Threshold, r.Err)
				continue
			}
			fmt.Fprintf(&b, "  %s %s (actual %s)\n", mark(r.Pass), r.Threshold, formatActual(r.Actual))
		}
		if s.ThresholdErr != nil && len(s.Thresholds) == 0 {
			fmt.Fprintf(&b, "  %s %v\n", mark(false), s.ThresholdErr)
		}
	}

	if len(snap.Checks) > 0 {
		b.WriteString("\nChecks\n")
		for _, c := range snap.Checks {
			fmt.Fprintf(&b, "  %s %s: %d/%d\n", mark(c.Fails == 0), c.Name, c.Passes, c.Total())
		}
	}

	if len(snap.Faults) > 0 {
		b.WriteString("\nWorkload Faults\n")
		for _, name := range snap.FaultNames() {
			fmt.Fprintf(&b, "  %s: %d\n", name, snap.Faults[name])
		}
	}

	return b.String(), NewDocument(s)
}

func writeMetricLine(b *strings.Builder, m metrics.MetricSnapshot) {
	switch m.Type {
	case metrics.TypeCounter:
		fmt.Fprintf(b, "  %-22s count=%d rate=%.2f/s\n", m.Name, m.Count, m.PerSecond())
	case metrics.TypeRate:
		fmt.Fprintf(b, "  %-22s rate=%.2f%% (%d/%d)\n", m.Name, m.Rate()*100, m.Passes, m.Passes+m.Fails)
	default:
		fmt.Fprintf(b, "  %-22s avg=%.2fms min=%.2fms med=%.2fms max=%.2fms",
			m.Name, msf(m.Avg()), msf(m.Min), msf(m.Median()), msf(m.Max))
		for _, p := range trendPercentiles {
			fmt.Fprintf(b, " %s=%.2fms", trendLabel(p), msf(m.Percentile(p)))
		}
		fmt.Fprintf(b, " count=%d\n", m.Count)
	}
}

func formatActual(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.4f", v)
}
