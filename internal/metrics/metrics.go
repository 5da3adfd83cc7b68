// Package metrics exports history engine counters to Prometheus.
//
// Metrics exported:
//
//   - jch_records_written_total{root,operation}
//   - jch_purge_runs_total
//   - jch_purge_records_total{result}: deleted, archived, failed
//   - jch_purge_duration_seconds
//   - jch_purge_last_success_timestamp_seconds
//   - jch_restores_total{result}
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jch-go/internal/history"
)

const namespace = "jch"

// Metrics is the Prometheus implementation of history.Metrics. Each
// instance owns its registry, so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	recordsWritten *prometheus.CounterVec
	purgeRuns      prometheus.Counter
	purgeRecords   *prometheus.CounterVec
	purgeDuration  prometheus.Histogram
	lastPurge      prometheus.Gauge
	restores       *prometheus.CounterVec
}

var _ history.Metrics = (*Metrics)(nil)

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		recordsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "History records written, by root and operation.",
		}, []string{"root", "operation"}),
		purgeRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purge_runs_total",
			Help:      "Completed purge runs.",
		}),
		purgeRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purge_records_total",
			Help:      "Records handled by the purger, by result.",
		}, []string{"result"}),
		purgeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "purge_duration_seconds",
			Help:      "Duration of purge runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		lastPurge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "purge_last_success_timestamp_seconds",
			Help:      "Unix time of the last purge run without failures.",
		}),
		restores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restores_total",
			Help:      "Restore attempts, by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.recordsWritten,
		m.purgeRuns,
		m.purgeRecords,
		m.purgeDuration,
		m.lastPurge,
		m.restores,
	)
	return m
}

func (m *Metrics) RecordWritten(root history.RootKind, op history.Operation) {
	m.recordsWritten.WithLabelValues(root.String(), string(op)).Inc()
}

func (m *Metrics) PurgeCompleted(result *history.PurgeResult, elapsed time.Duration) {
	m.purgeRuns.Inc()
	m.purgeDuration.Observe(elapsed.Seconds())
	m.purgeRecords.WithLabelValues("deleted").Add(float64(result.Deleted))
	m.purgeRecords.WithLabelValues("archived").Add(float64(result.Archived))
	m.purgeRecords.WithLabelValues("failed").Add(float64(result.Failed))
	if result.Failed == 0 {
		m.lastPurge.SetToCurrentTime()
	}
}

func (m *Metrics) RestoreCompleted(err error) {
	m.restores.WithLabelValues(restoreResult(err)).Inc()
}

func restoreResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, history.ErrPermissionDenied):
		return "denied"
	case errors.Is(err, history.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, history.ErrRestoreFailed):
		return "no_snapshot"
	case errors.Is(err, history.ErrHostOperationFailed):
		return "host_error"
	default:
		return "error"
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry to path for the node_exporter
// textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
