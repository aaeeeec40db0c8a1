package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the shortlist service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Competition metrics
	evaluationsRecorded *prometheus.CounterVec
	roundTransitions    *prometheus.CounterVec
	weightDefaults      prometheus.Counter
	shortlistRuns       *prometheus.CounterVec
	shortlistOutcomes   *prometheus.CounterVec
	absenteesHandled    *prometheus.CounterVec
	leaderboardLatency  prometheus.Histogram
	leaderboardErrors   prometheus.Counter
	activeTeams         prometheus.Gauge
	totalRounds         prometheus.Gauge

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRateLimited     prometheus.Counter

	// Repository metrics
	repositoryTxLatency *prometheus.HistogramVec
	repositoryTxErrors  *prometheus.CounterVec

	// Export queue metrics
	queueCapacity      prometheus.Gauge
	queueSize          prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	queueWaitLatency   prometheus.Histogram

	// Export worker metrics
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter
	exportsDelivered        *prometheus.CounterVec
	exportDuplicates        prometheus.Counter

	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "shortlist",
		subsystem:        "competition",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.evaluationsRecorded = auto.NewCounterVec(
		m.counterOpts("evaluations_recorded_total", "Team evaluations written, by presence"),
		[]string{"presence"},
	)
	m.roundTransitions = auto.NewCounterVec(
		m.counterOpts("round_transitions_total", "Round lifecycle transitions"),
		[]string{"transition"},
	)
	m.weightDefaults = auto.NewCounter(
		m.counterOpts("round_weight_defaults_total", "Default round weights materialized on first read"),
	)
	m.shortlistRuns = auto.NewCounterVec(
		m.counterOpts("shortlist_runs_total", "Shortlist executions by mode"),
		[]string{"mode"},
	)
	m.shortlistOutcomes = auto.NewCounterVec(
		m.counterOpts("shortlist_teams_total", "Teams selected or eliminated by shortlisting"),
		[]string{"outcome"},
	)
	m.absenteesHandled = auto.NewCounterVec(
		m.counterOpts("absentees_handled_total", "Absent teams eliminated or reactivated"),
		[]string{"action"},
	)
	m.leaderboardLatency = auto.NewHistogram(
		m.histogramOpts("leaderboard_compute_latency_milliseconds", "Leaderboard aggregation latency in milliseconds"),
	)
	m.leaderboardErrors = auto.NewCounter(
		m.counterOpts("leaderboard_errors_total", "Leaderboard aggregation failures"),
	)
	m.activeTeams = auto.NewGauge(m.gaugeOpts("active_teams", "Teams still in the competition"))
	m.totalRounds = auto.NewGauge(m.gaugeOpts("rounds", "Rounds known to the service"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRateLimited = auto.NewCounter(
		m.counterOpts("http_rate_limited_total", "Requests rejected by the rate limiter"),
	)

	m.repositoryTxLatency = auto.NewHistogramVec(
		m.histogramOpts("repository_tx_latency_milliseconds", "Repository transaction latency in milliseconds"),
		[]string{"backend"},
	)
	m.repositoryTxErrors = auto.NewCounterVec(
		m.counterOpts("repository_tx_errors_total", "Repository transactions rolled back"),
		[]string{"backend"},
	)

	m.queueCapacity = auto.NewGauge(m.gaugeOpts("export_queue_capacity", "Maximum export queue capacity"))
	m.queueSize = auto.NewGauge(m.gaugeOpts("export_queue_size", "Current export queue backlog"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("export_queue_enqueue_total", "Export jobs enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("export_queue_dequeue_total", "Export jobs dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(
		m.counterOpts("export_queue_enqueue_errors_total", "Export jobs rejected because the queue was full or closed"),
	)
	m.queueWaitLatency = auto.NewHistogram(
		m.histogramOpts("export_queue_wait_milliseconds", "Time export jobs spent waiting in the queue"),
	)

	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("export_workers_active", "Export workers currently running"))
	m.workerProcessingLatency = auto.NewHistogram(
		m.histogramOpts("export_worker_latency_milliseconds", "Export job processing latency in milliseconds"),
	)
	m.workerErrors = auto.NewCounter(m.counterOpts("export_worker_errors_total", "Export jobs that failed"))
	m.exportsDelivered = auto.NewCounterVec(
		m.counterOpts("exports_total", "Exports produced by kind"),
		[]string{"kind"},
	)
	m.exportDuplicates = auto.NewCounter(
		m.counterOpts("export_duplicates_total", "Export requests dropped as duplicates"),
	)

	m.errorsByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Errors by component and kind"),
		[]string{"component", "error_type"},
	)
}

// RecordEvaluation counts a written evaluation.
func RecordEvaluation(present bool) {
	presence := "present"
	if !present {
		presence = "absent"
	}
	globalManager.evaluationsRecorded.WithLabelValues(presence).Inc()
}

// RecordRoundTransition counts freeze, unfreeze and evaluate transitions.
func RecordRoundTransition(transition string) {
	globalManager.roundTransitions.WithLabelValues(transition).Inc()
}

// RecordWeightDefault counts a lazily created default weight.
func RecordWeightDefault() {
	globalManager.weightDefaults.Inc()
}

// RecordShortlist counts one shortlist run and its outcome sizes.
func RecordShortlist(mode string, selected, eliminated int) {
	globalManager.shortlistRuns.WithLabelValues(mode).Inc()
	globalManager.shortlistOutcomes.WithLabelValues("selected").Add(float64(selected))
	globalManager.shortlistOutcomes.WithLabelValues("eliminated").Add(float64(eliminated))
}

// RecordAbsentees counts absent teams handled by action (eliminated, reactivated).
func RecordAbsentees(action string, count int) {
	globalManager.absenteesHandled.WithLabelValues(action).Add(float64(count))
}

// RecordLeaderboardLatency records aggregation latency in milliseconds.
func RecordLeaderboardLatency(latencyMs float64) {
	globalManager.leaderboardLatency.Observe(latencyMs)
}

// RecordLeaderboardError increments the leaderboard errors counter.
func RecordLeaderboardError() {
	globalManager.leaderboardErrors.Inc()
}

// UpdateActiveTeams sets the active team gauge.
func UpdateActiveTeams(count int) {
	globalManager.activeTeams.Set(float64(count))
}

// UpdateTotalRounds sets the round gauge.
func UpdateTotalRounds(count int) {
	globalManager.totalRounds.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordRateLimited counts a throttled request.
func RecordRateLimited() {
	globalManager.httpRateLimited.Inc()
}

// RecordRepositoryTx records one repository transaction.
func RecordRepositoryTx(backend string, latencyMs float64, failed bool) {
	globalManager.repositoryTxLatency.WithLabelValues(backend).Observe(latencyMs)
	if failed {
		globalManager.repositoryTxErrors.WithLabelValues(backend).Inc()
	}
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueWait records how long a job waited before a worker picked it up.
func RecordQueueWait(latencyMs float64) {
	globalManager.queueWaitLatency.Observe(latencyMs)
}

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordExport counts a produced export (round_csv, leaderboard_csv, email).
func RecordExport(kind string) {
	globalManager.exportsDelivered.WithLabelValues(kind).Inc()
}

// RecordExportDuplicate counts an export request suppressed by deduplication.
func RecordExportDuplicate() {
	globalManager.exportDuplicates.Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
