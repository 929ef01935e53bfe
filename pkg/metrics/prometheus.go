package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	entitiesComputed *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	latency          *prometheus.HistogramVec
	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	lastRunDate      prometheus.Gauge
	lastRunFailures  prometheus.Gauge
}

// New creates a recorder registered on reg (prometheus.DefaultRegisterer when nil).
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		entitiesComputed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "equitypulse_entities_computed_total",
				Help: "Feature rows written, by entity kind",
			},
			[]string{"kind"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "equitypulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "equitypulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "equitypulse_runs_total",
				Help: "Engine runs by outcome",
			},
			[]string{"result"},
		),
		runDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "equitypulse_run_duration_seconds",
				Help:    "Wall time of a full engine run",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
		),
		lastRunDate: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "equitypulse_last_run_as_of_timestamp",
				Help: "As-of date of the last completed run as unix seconds",
			},
		),
		lastRunFailures: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "equitypulse_last_run_failures",
				Help: "Entities that failed in the last completed run",
			},
		),
	}
}

// RecordEntityComputed counts one written feature row.
func (r *Recorder) RecordEntityComputed(kind string) {
	r.entitiesComputed.WithLabelValues(kind).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordRun records a completed engine run.
func (r *Recorder) RecordRun(asOf time.Time, failures int, seconds float64) {
	result := "ok"
	if failures > 0 {
		result = "partial"
	}
	r.runsTotal.WithLabelValues(result).Inc()
	r.runDuration.Observe(seconds)
	r.lastRunDate.Set(float64(asOf.Unix()))
	r.lastRunFailures.Set(float64(failures))
}
