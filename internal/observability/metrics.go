// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Scan metrics
	SymbolsScanned      prometheus.Counter
	CheapFilterPassed   prometheus.Counter
	SignalsEmitted      *prometheus.CounterVec
	SignalsWritten      prometheus.Counter
	EvaluationErrors    *prometheus.CounterVec
	EvaluationsInFlight prometheus.Gauge
	SinkQueueDepth      prometheus.Gauge

	// Upstream API metrics
	HTTPRequestLatency *prometheus.HistogramVec
	HTTPRetries        *prometheus.CounterVec
	HTTPFailures       *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Run metrics
	RunsTotal     *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec
	RisksAssessed *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "perp_crowd_scanner"
	}

	return &Metrics{
		SymbolsScanned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "symbols_scanned_total",
			Help:      "Total number of instruments evaluated",
		}),
		CheapFilterPassed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "cheap_filter_passed_total",
			Help:      "Total number of instruments passing the ratio threshold stage",
		}),
		SignalsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "signals_emitted_total",
			Help:      "Total number of signal records emitted by setup",
		}, []string{"setup"}),
		SignalsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "signals_written_total",
			Help:      "Total number of signal records persisted",
		}),
		EvaluationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "evaluation_errors_total",
			Help:      "Total number of evaluations aborted by stage",
		}, []string{"stage"}),
		EvaluationsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "evaluations_in_flight",
			Help:      "Number of evaluations currently holding a concurrency slot",
		}),
		SinkQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "queue_depth",
			Help:      "Number of records waiting to be persisted",
		}),

		HTTPRequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "binance",
			Name:      "request_latency_seconds",
			Help:      "Upstream REST call latency in seconds, including retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		HTTPRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "binance",
			Name:      "request_retries_total",
			Help:      "Total number of retried upstream requests",
		}, []string{"endpoint"}),
		HTTPFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "binance",
			Name:      "request_failures_total",
			Help:      "Total number of upstream calls that failed after retries",
		}, []string{"endpoint"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "runs_total",
			Help:      "Total number of runs by pass and status",
		}, []string{"pass", "status"}),
		RunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Run duration in seconds",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"pass"}),
		RisksAssessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "assessments_total",
			Help:      "Total number of risk assessments by final grade",
		}, []string{"grade"}),

		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful scan run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordScanned increments the scanned instruments counter.
func RecordScanned() {
	DefaultMetrics.SymbolsScanned.Inc()
}

// RecordCheapFilterPassed increments the cheap filter pass counter.
func RecordCheapFilterPassed() {
	DefaultMetrics.CheapFilterPassed.Inc()
}

// RecordSignalEmitted increments the emitted records counter for a setup.
func RecordSignalEmitted(setup string) {
	DefaultMetrics.SignalsEmitted.WithLabelValues(setup).Inc()
}

// RecordSignalWritten increments the persisted records counter.
func RecordSignalWritten() {
	DefaultMetrics.SignalsWritten.Inc()
}

// RecordEvaluationError records an evaluation aborted at a stage.
func RecordEvaluationError(stage string) {
	DefaultMetrics.EvaluationErrors.WithLabelValues(stage).Inc()
}

// AddInFlight adjusts the in-flight evaluations gauge.
func AddInFlight(delta float64) {
	DefaultMetrics.EvaluationsInFlight.Add(delta)
}

// UpdateQueueDepth sets the sink queue depth gauge.
func UpdateQueueDepth(n int) {
	DefaultMetrics.SinkQueueDepth.Set(float64(n))
}

// RecordHTTPRequest records upstream call latency and, on failure, the failure counter.
func RecordHTTPRequest(endpoint string, seconds float64, err error) {
	DefaultMetrics.HTTPRequestLatency.WithLabelValues(endpoint).Observe(seconds)
	if err != nil {
		DefaultMetrics.HTTPFailures.WithLabelValues(endpoint).Inc()
	}
}

// RecordHTTPRetry increments the retry counter for an endpoint.
func RecordHTTPRetry(endpoint string) {
	DefaultMetrics.HTTPRetries.WithLabelValues(endpoint).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordRun records a finished run of a pass ("scan" or "risk").
func RecordRun(pass, status string, durationSeconds float64) {
	DefaultMetrics.RunsTotal.WithLabelValues(pass, status).Inc()
	DefaultMetrics.RunDuration.WithLabelValues(pass).Observe(durationSeconds)
}

// RecordRiskAssessed increments the assessment counter for a final grade.
func RecordRiskAssessed(grade string) {
	DefaultMetrics.RisksAssessed.WithLabelValues(grade).Inc()
}

// MarkRunSucceeded sets the last successful run gauge.
func MarkRunSucceeded(unixSeconds int64) {
	DefaultMetrics.LastSuccessfulRun.Set(float64(unixSeconds))
}
