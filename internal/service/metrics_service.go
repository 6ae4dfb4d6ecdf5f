package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-adp-reconciler/internal/models"
)

var runDurationBuckets = []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 300, 900}

// MetricsService owns the Prometheus registry for the trigger API, run
// history store and reconciler runs.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	historyOps      *prometheus.CounterVec
	historyDuration *prometheus.HistogramVec

	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	runRecords  *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
}

// NewMetricsService builds a fresh registry with Go runtime and process collectors.
func NewMetricsService() *MetricsService {
	m := &MetricsService{
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		historyOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "run_history_operations_total",
			Help: "Run history store operations by result",
		}, []string{"op", "result"}),
		historyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "run_history_operation_seconds",
			Help:    "Latency of run history store operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reconciler_runs_total",
			Help: "Reconciler runs by outcome",
		}, []string{"reconciler", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reconciler_run_duration_seconds",
			Help:    "Duration of reconciler runs",
			Buckets: runDurationBuckets,
		}, []string{"reconciler"}),
		runRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reconciler_records_total",
			Help: "Records handled by reconcilers, by outcome",
		}, []string{"reconciler", "outcome"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reconciler_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		}, []string{"reconciler"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestDuration, m.requestTotal,
		m.historyOps, m.historyDuration,
		m.runsTotal, m.runDuration, m.runRecords, m.lastSuccess,
	)
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
	return m
}

// Handler serves the registry. A nil service answers 503.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, code).Inc()
}

// ObserveHistoryRead records a latest-run lookup.
func (m *MetricsService) ObserveHistoryRead(hit bool, duration time.Duration) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.observeHistory("read", result, duration)
}

// ObserveHistoryWrite records a summary write.
func (m *MetricsService) ObserveHistoryWrite(err error, duration time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.observeHistory("write", result, duration)
}

func (m *MetricsService) observeHistory(op, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.historyOps.WithLabelValues(op, result).Inc()
	m.historyDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// ObserveRun records a finished or skipped reconciler run. Zero counts are not
// exported so idle outcomes do not create series.
func (m *MetricsService) ObserveRun(summary *models.RunSummary) {
	if m == nil || summary == nil {
		return
	}
	m.runsTotal.WithLabelValues(summary.Reconciler, string(summary.Outcome)).Inc()
	if summary.Outcome == models.RunOutcomeSkipped {
		return
	}
	m.runDuration.WithLabelValues(summary.Reconciler).Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	for outcome, n := range summary.Counts {
		if n > 0 {
			m.runRecords.WithLabelValues(summary.Reconciler, outcome).Add(float64(n))
		}
	}
	if summary.Outcome == models.RunOutcomeSucceeded {
		m.lastSuccess.WithLabelValues(summary.Reconciler).Set(float64(summary.FinishedAt.Unix()))
	}
}
