package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps prometheus collectors for gameserver metrics.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// Action log
	actionsAppendedTotal *prometheus.CounterVec

	// Fold pipeline
	foldAdvancesTotal *prometheus.CounterVec

	// Sandbox
	sandboxRunsTotal    *prometheus.CounterVec
	sandboxTrapsTotal   *prometheus.CounterVec
	sandboxDuration     *prometheus.HistogramVec

	// Compiled-module cache
	compileCacheTotal *prometheus.CounterVec

	// Credentials
	credentialRefreshTotal *prometheus.CounterVec

	// Gauges
	uptime prometheus.GaugeFunc
}

// Default histogram buckets for sandbox run duration (in milliseconds).
var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

var promMetrics *PrometheusMetrics

// InitPrometheus initializes the Prometheus metrics subsystem.
func InitPrometheus(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		actionsAppendedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_appended_total",
				Help:      "Total number of actions appended to the log, by outcome",
			},
			[]string{"status"},
		),

		foldAdvancesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fold_advances_total",
				Help:      "Total number of fold pipeline advances, by module and outcome",
			},
			[]string{"module_id", "status"},
		),

		sandboxRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sandbox_runs_total",
				Help:      "Total number of sandbox runs, by module and outcome",
			},
			[]string{"module_id", "status"},
		),

		sandboxTrapsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sandbox_traps_total",
				Help:      "Total number of sandbox runs that exited via a trap",
			},
			[]string{"module_id"},
		),

		sandboxDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sandbox_run_duration_milliseconds",
				Help:      "Duration of sandbox runs in milliseconds",
				Buckets:   buckets,
			},
			[]string{"module_id"},
		),

		compileCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compile_cache_total",
				Help:      "Total compiled-module cache lookups, by hit/miss",
			},
			[]string{"result"},
		),

		credentialRefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "credential_refresh_total",
				Help:      "Total token source refreshes, by outcome",
			},
			[]string{"status"},
		),
	}

	pm.uptime = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Time since the daemon started",
		},
		func() float64 {
			return time.Since(StartTime()).Seconds()
		},
	)

	registry.MustRegister(
		pm.actionsAppendedTotal,
		pm.foldAdvancesTotal,
		pm.sandboxRunsTotal,
		pm.sandboxTrapsTotal,
		pm.sandboxDuration,
		pm.compileCacheTotal,
		pm.credentialRefreshTotal,
		pm.uptime,
	)

	promMetrics = pm
}

// RecordPrometheusAppend records an action-log append outcome.
func RecordPrometheusAppend(success bool) {
	if promMetrics == nil {
		return
	}
	promMetrics.actionsAppendedTotal.WithLabelValues(statusLabel(success)).Inc()
}

// RecordPrometheusFoldAdvance records a fold pipeline advance for moduleID.
func RecordPrometheusFoldAdvance(moduleID string, success bool) {
	if promMetrics == nil {
		return
	}
	promMetrics.foldAdvancesTotal.WithLabelValues(moduleID, statusLabel(success)).Inc()
}

// RecordPrometheusSandboxRun records a sandbox run outcome for moduleID.
func RecordPrometheusSandboxRun(moduleID string, durationMs int64, success bool, trapped bool) {
	if promMetrics == nil {
		return
	}
	promMetrics.sandboxRunsTotal.WithLabelValues(moduleID, statusLabel(success)).Inc()
	if trapped {
		promMetrics.sandboxTrapsTotal.WithLabelValues(moduleID).Inc()
	}
	promMetrics.sandboxDuration.WithLabelValues(moduleID).Observe(float64(durationMs))
}

// RecordPrometheusCompileCache records a compiled-module cache lookup.
func RecordPrometheusCompileCache(hit bool) {
	if promMetrics == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	promMetrics.compileCacheTotal.WithLabelValues(result).Inc()
}

// RecordPrometheusCredentialRefresh records a token source refresh outcome.
func RecordPrometheusCredentialRefresh(success bool) {
	if promMetrics == nil {
		return
	}
	promMetrics.credentialRefreshTotal.WithLabelValues(statusLabel(success)).Inc()
}

// PrometheusHandler returns an HTTP handler for Prometheus metrics scraping.
func PrometheusHandler() http.Handler {
	if promMetrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("prometheus metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}

// PrometheusRegistry returns the prometheus registry (for custom collectors).
func PrometheusRegistry() *prometheus.Registry {
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}
