// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run status label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Pipeline metrics
	RunsTotal         *prometheus.CounterVec
	RunDuration       *prometheus.HistogramVec
	CandidatesTotal   *prometheus.CounterVec
	SkippedTotal      *prometheus.CounterVec
	InsertedTotal     *prometheus.CounterVec
	ConflictsTotal    *prometheus.CounterVec
	CadenceGapsTotal  *prometheus.CounterVec
	VerifyDivergences *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg uses the default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "crptrix"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of per-symbol feature runs by status",
		}, []string{"symbol", "status"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Per-symbol feature run duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"symbol"}),
		CandidatesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "candidates_total",
			Help:      "Feature rows produced by the calculator",
		}, []string{"symbol"}),
		SkippedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "skipped_total",
			Help:      "Candidate rows skipped because their timestamp was already materialized",
		}, []string{"symbol"}),
		InsertedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "inserted_total",
			Help:      "Feature rows inserted into the feature store",
		}, []string{"symbol"}),
		ConflictsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "conflicts_total",
			Help:      "Staged rows ignored because a concurrent run inserted them first",
		}, []string{"symbol"}),
		CadenceGapsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "cadence_gaps_total",
			Help:      "Consecutive price ticks not exactly one interval apart",
		}, []string{"symbol"}),
		VerifyDivergences: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verify",
			Name:      "divergent_rows_total",
			Help:      "Stored rows that differ from a fresh recomputation",
		}, []string{"symbol"}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Store call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"store", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of failed store calls",
		}, []string{"store", "operation"}),

		LastSuccessfulRun: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last successful run per symbol",
		}, []string{"symbol"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a /metrics handler serving only reg.
func HandlerFor(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// RecordRun records a finished per-symbol run. unixSeconds is only
// applied to the health gauge when the run succeeded.
func (m *Metrics) RecordRun(symbol, status string, durationSeconds float64, unixSeconds float64) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(symbol, status).Inc()
	m.RunDuration.WithLabelValues(symbol).Observe(durationSeconds)
	if status == StatusSuccess {
		m.LastSuccessfulRun.WithLabelValues(symbol).Set(unixSeconds)
	}
}

// RecordWrite adds the writer's counts for one run.
func (m *Metrics) RecordWrite(symbol string, candidates, skipped, inserted, conflicts int) {
	if m == nil {
		return
	}
	m.CandidatesTotal.WithLabelValues(symbol).Add(float64(candidates))
	m.SkippedTotal.WithLabelValues(symbol).Add(float64(skipped))
	m.InsertedTotal.WithLabelValues(symbol).Add(float64(inserted))
	m.ConflictsTotal.WithLabelValues(symbol).Add(float64(conflicts))
}

// RecordCadenceGaps counts irregular tick spacings seen in one run.
func (m *Metrics) RecordCadenceGaps(symbol string, gaps int) {
	if m == nil || gaps == 0 {
		return
	}
	m.CadenceGapsTotal.WithLabelValues(symbol).Add(float64(gaps))
}

// RecordDivergences counts rows a verification found to differ.
func (m *Metrics) RecordDivergences(symbol string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.VerifyDivergences.WithLabelValues(symbol).Add(float64(n))
}

// RecordDBQuery records store call metrics.
func (m *Metrics) RecordDBQuery(store, operation string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(store, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(store, operation).Inc()
	}
}
