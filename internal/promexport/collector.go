// Package promexport exposes a live metrics registry in Prometheus text format.
package promexport

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/torosent/vuramp/internal/metrics"
)

const namespace = "vuramp"

var trendQuantiles = []float64{0.5, 0.9, 0.95, 0.99}

// VUSource reports the current number of running virtual users.
type VUSource interface {
	ActiveVUs() int
}

// Collector converts registry snapshots into Prometheus metrics at scrape
// time. Custom metrics are only known at runtime, so the collector is
// unchecked: Describe sends nothing.
type Collector struct {
	reg *metrics.Registry
	vus VUSource

	vusDesc   *prometheus.Desc
	checkDesc *prometheus.Desc
	faultDesc *prometheus.Desc
}

// NewCollector creates a collector over reg. vus may be nil.
func NewCollector(reg *metrics.Registry, vus VUSource) *Collector {
	return &Collector{
		reg: reg,
		vus: vus,
		vusDesc: prometheus.NewDesc(namespace+"_vus",
			"Number of running virtual users.", nil, nil),
		checkDesc: prometheus.NewDesc(namespace+"_check_results_total",
			"Check outcomes by check name.", []string{"check", "result"}, nil),
		faultDesc: prometheus.NewDesc(namespace+"_workload_faults_total",
			"Failed iterations by fault.", []string{"fault"}, nil),
	}
}

func (c *Collector) Describe(chan<- *prometheus.Desc) {}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.reg.Snapshot()

	if c.vus != nil {
		ch <- prometheus.MustNewConstMetric(c.vusDesc, prometheus.GaugeValue, float64(c.vus.ActiveVUs()))
	}

	for _, name := range snap.Order {
		m, ok := snap.Metrics[name]
		if !ok {
			continue
		}
		base := namespace + "_" + sanitize(name)
		switch m.Type {
		case metrics.TypeCounter:
			desc := prometheus.NewDesc(strings.TrimSuffix(base, "_total")+"_total", "Counter "+name+".", nil, nil)
			ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(m.Count))
		case metrics.TypeRate:
			desc := prometheus.NewDesc(base+"_ratio", "Fraction of true observations for rate "+name+".", nil, nil)
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, m.Rate())
		case metrics.TypeTrend:
			desc := prometheus.NewDesc(base+"_seconds", "Trend "+name+".", nil, nil)
			quantiles := make(map[float64]float64, len(trendQuantiles))
			for _, q := range trendQuantiles {
				quantiles[q] = m.Percentile(q * 100).Seconds()
			}
			ch <- prometheus.MustNewConstSummary(desc, uint64(m.Count), m.Sum.Seconds(), quantiles)
		}
	}

	for _, tally := range snap.Checks {
		ch <- prometheus.MustNewConstMetric(c.checkDesc, prometheus.CounterValue, float64(tally.Passes), tally.Name, "pass")
		ch <- prometheus.MustNewConstMetric(c.checkDesc, prometheus.CounterValue, float64(tally.Fails), tally.Name, "fail")
	}
	for fault, n := range snap.Faults {
		ch <- prometheus.MustNewConstMetric(c.faultDesc, prometheus.CounterValue, float64(n), fault)
	}
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, name)
}
