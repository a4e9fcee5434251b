// Package metrics holds the Prometheus collectors for the sync jobs.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Entity outcome labels.
const (
	OutcomeCreated = "created"
	OutcomeSkipped = "skipped"
	OutcomeUpdated = "updated"
	OutcomeFailed  = "failed"
	OutcomeWarning = "warning"
)

// Metrics holds the Prometheus collectors for job runs.
type Metrics struct {
	// JobRunsTotal counts runs by job and status ("success", "error", "cancelled").
	JobRunsTotal *prometheus.CounterVec
	// JobDuration observes wall time per run.
	JobDuration *prometheus.HistogramVec
	// JobEntitiesTotal counts per-entity outcomes.
	JobEntitiesTotal *prometheus.CounterVec
	// JobRetriesTotal counts scheduler-driven re-runs.
	JobRetriesTotal *prometheus.CounterVec
	// LastSuccess records the unix time of the last successful run.
	LastSuccess *prometheus.GaugeVec
}

// Get returns the process-wide metrics, registering them on first use.
// Metrics are prefixed with "wealthsync_".
func Get() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			JobRunsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "wealthsync_job_runs_total",
					Help: "Total number of job runs by outcome",
				},
				[]string{"job", "status"},
			),
			JobDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "wealthsync_job_duration_seconds",
					Help:    "Duration of job runs in seconds",
					Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
				},
				[]string{"job"},
			),
			JobEntitiesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "wealthsync_job_entities_total",
					Help: "Entities processed by jobs, by outcome",
				},
				[]string{"job", "outcome"},
			),
			JobRetriesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "wealthsync_job_retries_total",
					Help: "Number of times a failed job was re-run",
				},
				[]string{"job"},
			),
			LastSuccess: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "wealthsync_job_last_success_timestamp_seconds",
					Help: "Unix time of the last successful job run",
				},
				[]string{"job"},
			),
		}
	})
	return globalMetrics
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(job string, elapsed time.Duration, status string) {
	m.JobRunsTotal.WithLabelValues(job, status).Inc()
	m.JobDuration.WithLabelValues(job).Observe(elapsed.Seconds())
	if status == "success" {
		m.LastSuccess.WithLabelValues(job).SetToCurrentTime()
	}
}

// AddEntities adds n entities with the given outcome. Zero is a no-op.
func (m *Metrics) AddEntities(job, outcome string, n int) {
	if n > 0 {
		m.JobEntitiesTotal.WithLabelValues(job, outcome).Add(float64(n))
	}
}
