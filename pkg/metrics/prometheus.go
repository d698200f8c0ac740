// Package metrics provides Prometheus metrics for the jury judging service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the jury service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Judging flow
	assignments       *prometheus.CounterVec
	poolExhausted     prometheus.Counter
	skips             prometheus.Counter
	comparisons       prometheus.Counter
	batches           *prometheus.CounterVec
	guardActions      *prometheus.CounterVec
	selectionLatency  prometheus.Histogram
	selectionPoolSize prometheus.Histogram
	ratingLatency     prometheus.Histogram

	// Rankings
	topCache *prometheus.CounterVec

	// Store
	storeLatency *prometheus.HistogramVec
	storeRecords *prometheus.GaugeVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "jury",
		subsystem:        "judging",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gauge(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.assignments = auto.NewCounterVec(
		m.counter("assignments_total", "Projects assigned to judges by selection strategy"),
		[]string{"strategy"},
	)
	m.poolExhausted = auto.NewCounter(m.counter("pool_exhausted_total", "Selections that found no project left for the judge"))
	m.skips = auto.NewCounter(m.counter("skips_total", "Projects skipped by judges"))
	m.comparisons = auto.NewCounter(m.counter("comparisons_total", "Pairwise votes applied"))
	m.batches = auto.NewCounterVec(
		m.counter("comparison_batches_total", "Comparison batches by result"),
		[]string{"result"},
	)
	m.guardActions = auto.NewCounterVec(
		m.counter("numeric_guard_total", "Rating updates by numeric guard action"),
		[]string{"action"},
	)
	m.selectionLatency = auto.NewHistogram(m.histogram(
		"selection_latency_milliseconds", "Time spent choosing the next project", m.histogramBuckets))
	m.selectionPoolSize = auto.NewHistogram(m.histogram(
		"selection_pool_size", "Candidates left after busy and coverage filtering",
		[]float64{0, 1, 2, 5, 10, 20, 50, 100, 200, 500}))
	m.ratingLatency = auto.NewHistogram(m.histogram(
		"rating_update_latency_milliseconds", "Time spent applying one comparison batch", m.histogramBuckets))

	m.topCache = auto.NewCounterVec(
		m.counter("top_projects_cache_total", "Top projects cache lookups by result"),
		[]string{"result"},
	)

	m.storeLatency = auto.NewHistogramVec(
		m.histogram("store_operation_latency_milliseconds", "Store operation latency", m.histogramBuckets),
		[]string{"operation"},
	)
	m.storeRecords = auto.NewGaugeVec(
		m.gauge("store_records", "Rows held by the store by kind"),
		[]string{"kind"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counter("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogram("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		m.counter("errors_by_component_total", "Total number of errors by component"),
		[]string{"component", "error_type"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counter("errors_by_endpoint_total", "Total number of errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gauge("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gauge("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogram(
		"system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// RecordAssignment counts a project assigned with the given strategy.
func RecordAssignment(strategy string) {
	globalManager.assignments.WithLabelValues(strategy).Inc()
}

// RecordPoolExhausted counts a selection that found nothing left.
func RecordPoolExhausted() {
	globalManager.poolExhausted.Inc()
}

// RecordSkip counts a skipped project.
func RecordSkip() {
	globalManager.skips.Inc()
}

// RecordComparisons adds n applied votes.
func RecordComparisons(n int) {
	globalManager.comparisons.Add(float64(n))
}

// RecordBatch counts a comparison batch by result (applied, duplicate, failed).
func RecordBatch(result string) {
	globalManager.batches.WithLabelValues(result).Inc()
}

// RecordGuardAction counts a numeric guard outcome.
func RecordGuardAction(action string) {
	globalManager.guardActions.WithLabelValues(action).Inc()
}

// RecordSelectionLatency records selection latency in milliseconds.
func RecordSelectionLatency(latencyMs float64) {
	globalManager.selectionLatency.Observe(latencyMs)
}

// RecordSelectionPoolSize records the size of the final candidate pool.
func RecordSelectionPoolSize(size int) {
	globalManager.selectionPoolSize.Observe(float64(size))
}

// RecordRatingUpdateLatency records the latency of one comparison batch.
func RecordRatingUpdateLatency(latencyMs float64) {
	globalManager.ratingLatency.Observe(latencyMs)
}

// RecordTopCacheHit counts a top projects cache hit.
func RecordTopCacheHit() {
	globalManager.topCache.WithLabelValues("hit").Inc()
}

// RecordTopCacheMiss counts a top projects cache miss.
func RecordTopCacheMiss() {
	globalManager.topCache.WithLabelValues("miss").Inc()
}

// RecordStoreOperation records the latency of a store operation.
func RecordStoreOperation(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// UpdateStoreRecords sets the number of rows of one kind.
func UpdateStoreRecords(kind string, count int) {
	globalManager.storeRecords.WithLabelValues(kind).Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
