package service

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/hms-scope/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for backfill runs,
// store calls, cache lookups and the ops HTTP server.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	decisions       *prometheus.CounterVec
	runs            *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	lastRunUpdated  *prometheus.GaugeVec
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scope_backfill_decisions_total",
		Help: "Backfill decisions by work item kind, outcome and reason",
	}, []string{"kind", "decision", "reason"})

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scope_backfill_runs_total",
		Help: "Backfill runs by work item kind and outcome",
	}, []string{"kind", "outcome"})

	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scope_backfill_run_duration_seconds",
		Help:    "Duration of backfill runs",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"kind"})

	lastRunUpdated := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scope_backfill_last_run_updated",
		Help: "Work items updated by the most recent run",
	}, []string{"kind"})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	registry.MustRegister(decisions, runs, runDuration, lastRunUpdated, requestDuration, requestTotal, cacheHits, cacheMisses, dbQueryDuration)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		decisions:       decisions,
		runs:            runs,
		runDuration:     runDuration,
		lastRunUpdated:  lastRunUpdated,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		dbQueryDuration: dbQueryDuration,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// RecordDecision counts one backfill decision.
func (m *MetricsService) RecordDecision(d models.BackfillDecision) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(d.Kind), string(d.Decision), d.Reason).Inc()
}

// ObserveRun records a finished run.
func (m *MetricsService) ObserveRun(summary *models.BackfillSummary, runErr error) {
	if m == nil || summary == nil {
		return
	}
	outcome := "completed"
	switch {
	case runErr != nil:
		outcome = "failed"
	case summary.Aborted:
		outcome = "aborted"
	}
	kind := string(summary.Kind)
	m.runs.WithLabelValues(kind, outcome).Inc()
	if !summary.FinishedAt.IsZero() {
		m.runDuration.WithLabelValues(kind).Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	}
	m.lastRunUpdated.WithLabelValues(kind).Set(float64(summary.Updated))
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}
