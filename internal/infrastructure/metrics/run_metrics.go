// Package metrics exports run summaries as Prometheus gauges written to a
// node-exporter textfile, since each run is a short-lived process.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names
const (
	Namespace = "qpss"

	MetricRunOutcome       = "qpss_run_outcome"
	MetricRunDuration      = "qpss_run_duration_seconds"
	MetricRunLastTimestamp = "qpss_run_last_timestamp_seconds"
	MetricRunSucceeded     = "qpss_run_succeeded"
)

// RunMetrics holds the gauges for one process run
type RunMetrics struct {
	registry  *prometheus.Registry
	outcome   *prometheus.GaugeVec
	duration  *prometheus.GaugeVec
	lastRun   *prometheus.GaugeVec
	succeeded *prometheus.GaugeVec
}

// NewRunMetrics creates the gauges on a private registry
func NewRunMetrics() *RunMetrics {
	m := &RunMetrics{registry: prometheus.NewRegistry()}

	m.outcome = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "run_outcome",
			Help:      "Shipments per outcome in the last run of a flow.",
		},
		[]string{"flow", "outcome"},
	)
	m.duration = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run of a flow.",
		},
		[]string{"flow"},
	)
	m.lastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "run_last_timestamp_seconds",
			Help:      "Unix time the last run of a flow finished.",
		},
		[]string{"flow"},
	)
	m.succeeded = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "run_succeeded",
			Help:      "1 if the last run of a flow completed without a fatal error.",
		},
		[]string{"flow"},
	)

	m.registry.MustRegister(m.outcome, m.duration, m.lastRun, m.succeeded)
	return m
}

// Registry returns the registry holding the run gauges
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records a finished run. counts maps outcome names to shipment counts.
func (m *RunMetrics) Observe(flow string, counts map[string]int, elapsed time.Duration, finished time.Time, runErr error) {
	for outcome, n := range counts {
		m.outcome.WithLabelValues(flow, outcome).Set(float64(n))
	}
	m.duration.WithLabelValues(flow).Set(elapsed.Seconds())
	m.lastRun.WithLabelValues(flow).Set(float64(finished.Unix()))
	ok := 0.0
	if runErr == nil {
		ok = 1
	}
	m.succeeded.WithLabelValues(flow).Set(ok)
}

// WriteTextfile writes the registry in text exposition format.
// The write goes through a temp file and rename, so a scrape never reads a partial file.
func (m *RunMetrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// FlowTextfile returns the textfile for one flow, so flows run by separate
// processes do not overwrite each other's gauges: qpss.prom becomes qpss_flow1.prom.
func FlowTextfile(path, flow string) string {
	if path == "" {
		return ""
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_" + flow + ext
}
