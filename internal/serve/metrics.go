// Package serve runs evergreen as a long-lived service: a periodic scan
// scheduler, a webhook endpoint for on-demand scans, and Prometheus metrics.
package serve

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/verdantci/evergreen/internal/resolver"
)

// Metrics holds the Prometheus metrics exposed by serve mode. Each server
// owns its registry so tests can create them freely.
type Metrics struct {
	ScansTotal   prometheus.Counter
	ScanFailures prometheus.Counter
	UpdatesFound prometheus.Counter
	ScanDuration prometheus.Histogram

	registry *prometheus.Registry
}

// NewMetrics creates and registers the serve-mode metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		ScansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evergreen_scans_total",
			Help: "Total number of Dockerfile scans performed",
		}),
		ScanFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evergreen_scan_failures_total",
			Help: "Total number of scans that failed entirely",
		}),
		UpdatesFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evergreen_updates_found_total",
			Help: "Total number of image updates detected",
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "evergreen_scan_duration_seconds",
			Help:    "Scan duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		registry: registry,
	}

	registry.MustRegister(m.ScansTotal, m.ScanFailures, m.UpdatesFound, m.ScanDuration)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveScan records the outcome of one scan.
func (m *Metrics) ObserveScan(report resolver.ScanReport, err error) {
	m.ScansTotal.Inc()
	m.ScanDuration.Observe(report.Duration.Seconds())
	m.UpdatesFound.Add(float64(report.UpdatesFound))
	if err != nil || report.Failed() {
		m.ScanFailures.Inc()
	}
}
