package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LiveStats provides the metrics collector access to in-process state.
type LiveStats interface {
	InFlight() int
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	stats LiveStats

	inFlight *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// stats may be nil (the gauge will report 0).
func NewCollector(stats LiveStats) *Collector {
	return &Collector{
		stats: stats,
		inFlight: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "transcriptions_in_flight"),
			"Transcription requests currently waiting on the remote API.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.inFlight
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	n := 0
	if c.stats != nil {
		n = c.stats.InFlight()
	}
	ch <- prometheus.MustNewConstMetric(c.inFlight, prometheus.GaugeValue, float64(n))
}
