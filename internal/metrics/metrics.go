package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all the agent metrics
type Metrics struct {
	// Control API metrics
	HTTPRequestTotal    *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Backend REST metrics
	BackendRequestTotal    *prometheus.CounterVec
	BackendRequestDuration *prometheus.HistogramVec

	// Feed and interaction metrics
	FeedFetchTotal *prometheus.CounterVec
	MutationTotal  *prometheus.CounterVec

	// Push channel metrics
	PushEventTotal     *prometheus.CounterVec
	PushReconnectTotal prometheus.Counter
	PushConnected      prometheus.Gauge
	NotificationDedup  prometheus.Counter

	// Snapshot storage metrics
	StorageOperationTotal    *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec
}

// Global metrics instance with mutex for thread safety
var (
	globalMetrics *Metrics
	metricsMutex  sync.Mutex
)

// NewMetrics returns the process-wide Metrics, creating and registering it on first use
func NewMetrics() *Metrics {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()

	// Return existing instance if already created
	if globalMetrics != nil {
		return globalMetrics
	}

	m := &Metrics{
		HTTPRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedsync_http_requests_total",
			Help: "Total number of control API requests",
		}, []string{"method", "path", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "feedsync_http_request_duration_seconds",
			Help:    "Control API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),

		BackendRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedsync_backend_requests_total",
			Help: "Total number of backend REST requests",
		}, []string{"endpoint", "outcome"}),

		BackendRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "feedsync_backend_request_duration_seconds",
			Help:    "Backend REST request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint", "outcome"}),

		FeedFetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedsync_feed_fetch_total",
			Help: "Feed page fetches by mode and outcome",
		}, []string{"mode", "outcome"}),

		MutationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedsync_mutations_total",
			Help: "Optimistic mutations by kind and outcome",
		}, []string{"kind", "outcome"}),

		PushEventTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedsync_push_events_total",
			Help: "Push channel events by type and status",
		}, []string{"event_type", "status"}),

		PushReconnectTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedsync_push_reconnects_total",
			Help: "Push channel reconnect attempts",
		}),

		PushConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "feedsync_push_connected",
			Help: "1 while the push channel is connected",
		}),

		NotificationDedup: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedsync_notification_dedup_total",
			Help: "Notifications merged into an existing record by id",
		}),

		StorageOperationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedsync_storage_operations_total",
			Help: "Total number of snapshot storage operations",
		}, []string{"operation", "status"}),

		StorageOperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "feedsync_storage_operation_duration_seconds",
			Help:    "Snapshot storage operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "status"}),
	}

	// Register metrics with the default registry
	registerMetrics(m)

	// Store as global instance
	globalMetrics = m

	return m
}

// registerMetrics registers all metrics with the default registry
func registerMetrics(m *Metrics) {
	for _, c := range []prometheus.Collector{
		m.HTTPRequestTotal,
		m.HTTPRequestDuration,
		m.BackendRequestTotal,
		m.BackendRequestDuration,
		m.FeedFetchTotal,
		m.MutationTotal,
		m.PushEventTotal,
		m.PushReconnectTotal,
		m.PushConnected,
		m.NotificationDedup,
		m.StorageOperationTotal,
		m.StorageOperationDuration,
	} {
		registerOrGet(c)
	}
}

// registerOrGet tries to register a metric, returns the existing one if already registered
func registerOrGet(c prometheus.Collector) prometheus.Collector {
	if err := prometheus.Register(c); err != nil {
		// If already registered, return the existing collector
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
	}
	return c
}

// Outcome labels an operation result for the outcome label.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
