// Package metrics provides Prometheus metrics for the rollcall attendance service.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Aggregation
	aggregationLatency *prometheus.HistogramVec
	charactersTracked  prometheus.Gauge

	// Log API source
	apiPageFetches    *prometheus.CounterVec
	apiRequestLatency *prometheus.HistogramVec
	apiErrors         *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec
	duplicatesDropped prometheus.Counter
	recordsYielded    prometheus.Counter

	// Circuit breaker
	breakerState       *prometheus.GaugeVec
	breakerTransitions *prometheus.CounterVec

	// Sync jobs
	syncJobs          *prometheus.CounterVec
	syncLatency       prometheus.Histogram
	reportsIngested   prometheus.Counter
	queueSize         prometheus.Gauge
	queueCapacity     prometheus.Gauge
	workerCount       prometheus.Gauge
	workerActiveCount prometheus.Gauge

	// Store
	storeQueryLatency *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "rollcall",
		subsystem:        "attendance",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: name, Help: help, ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: name, Help: help, ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	auto := promauto.With(m.registry)

	m.aggregationLatency = auto.NewHistogramVec(
		m.histogramOpts("aggregation_latency_milliseconds", "Attendance aggregation latency by entry point"),
		[]string{"entry_point"},
	)
	m.charactersTracked = auto.NewGauge(m.gaugeOpts("characters_tracked", "Characters in the store"))

	m.apiPageFetches = auto.NewCounterVec(
		m.counterOpts("api_page_fetches_total", "Pages fetched from the log API"),
		[]string{"operation"},
	)
	m.apiRequestLatency = auto.NewHistogramVec(
		m.histogramOpts("api_request_latency_milliseconds", "Log API request latency"),
		[]string{"operation"},
	)
	m.apiErrors = auto.NewCounterVec(
		m.counterOpts("api_errors_total", "Log API errors by kind"),
		[]string{"kind"},
	)
	m.cacheLookups = auto.NewCounterVec(
		m.counterOpts("cache_lookups_total", "Response cache lookups by result"),
		[]string{"result"},
	)
	m.duplicatesDropped = auto.NewCounter(m.counterOpts("duplicates_dropped_total", "Report codes dropped as already seen"))
	m.recordsYielded = auto.NewCounter(m.counterOpts("records_yielded_total", "Raid records yielded by the lazy source"))

	m.breakerState = auto.NewGaugeVec(
		m.gaugeOpts("circuit_breaker_state", "Circuit breaker state (0 closed, 1 half-open, 2 open)"),
		[]string{"name"},
	)
	m.breakerTransitions = auto.NewCounterVec(
		m.counterOpts("circuit_breaker_transitions_total", "Circuit breaker state transitions"),
		[]string{"name", "from", "to"},
	)

	m.syncJobs = auto.NewCounterVec(
		m.counterOpts("sync_jobs_total", "Sync jobs by outcome"),
		[]string{"outcome"},
	)
	m.syncLatency = auto.NewHistogram(m.histogramOpts("sync_latency_milliseconds", "Sync job processing latency"))
	m.reportsIngested = auto.NewCounter(m.counterOpts("reports_ingested_total", "Reports written to the store by sync jobs"))
	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current size of the sync job queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Capacity of the sync job queue"))
	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Configured sync workers"))
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Sync workers currently running a job"))

	m.storeQueryLatency = auto.NewHistogramVec(
		m.histogramOpts("store_query_latency_milliseconds", "Store query latency"),
		[]string{"query"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		m.counterOpts("errors_total", "Errors by component and type"),
		[]string{"component", "error_type"},
	)
}

// RecordAggregationLatency records how long an attendance entry point took.
func RecordAggregationLatency(entryPoint string, latencyMs float64) {
	globalManager.aggregationLatency.WithLabelValues(entryPoint).Observe(latencyMs)
}

// UpdateCharactersTracked sets the number of characters in the store.
func UpdateCharactersTracked(count int) {
	globalManager.charactersTracked.Set(float64(count))
}

// RecordAPIPageFetch counts one page fetched from the log API.
func RecordAPIPageFetch(operation string) {
	globalManager.apiPageFetches.WithLabelValues(operation).Inc()
}

// RecordAPIRequestLatency records a log API round trip.
func RecordAPIRequestLatency(operation string, latencyMs float64) {
	globalManager.apiRequestLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordAPIError counts a log API failure by kind.
func RecordAPIError(kind string) {
	globalManager.apiErrors.WithLabelValues(kind).Inc()
}

// RecordCacheHit counts a response cache hit.
func RecordCacheHit() {
	globalManager.cacheLookups.WithLabelValues("hit").Inc()
}

// RecordCacheMiss counts a response cache miss.
func RecordCacheMiss() {
	globalManager.cacheLookups.WithLabelValues("miss").Inc()
}

// RecordDuplicateDropped counts a report code skipped as already seen.
func RecordDuplicateDropped() {
	globalManager.duplicatesDropped.Inc()
}

// RecordRecordYielded counts a record handed to a lazy consumer.
func RecordRecordYielded() {
	globalManager.recordsYielded.Inc()
}

// UpdateCircuitBreakerState sets the breaker state gauge.
func UpdateCircuitBreakerState(name string, state float64) {
	globalManager.breakerState.WithLabelValues(name).Set(state)
}

// RecordCircuitBreakerTransition counts a breaker state change.
func RecordCircuitBreakerTransition(name, from, to string) {
	globalManager.breakerTransitions.WithLabelValues(name, from, to).Inc()
}

// RecordSyncJob counts a sync job outcome: enqueued, succeeded, failed, retried or skipped.
func RecordSyncJob(outcome string) {
	globalManager.syncJobs.WithLabelValues(outcome).Inc()
}

// RecordSyncLatency records how long one sync job attempt took.
func RecordSyncLatency(latencyMs float64) {
	globalManager.syncLatency.Observe(latencyMs)
}

// RecordReportsIngested adds n to the ingested reports counter.
func RecordReportsIngested(n int) {
	globalManager.reportsIngested.Add(float64(n))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// AddWorkerActive moves the busy worker gauge by delta.
func AddWorkerActive(delta int) {
	globalManager.workerActiveCount.Add(float64(delta))
}

// RecordStoreQueryLatency records a store query.
func RecordStoreQueryLatency(query string, latencyMs float64) {
	globalManager.storeQueryLatency.WithLabelValues(query).Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent counts an error attributed to a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the registry the global manager writes to.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// RegisterRuntimeCollectors adds Go runtime and process metrics to the
// registry. Calling it twice is a no-op.
func RegisterRuntimeCollectors() error {
	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := customRegistry.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}
	return nil
}
