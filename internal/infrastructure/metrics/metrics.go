package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the session console
type Metrics struct {
	// Auth flow metrics
	AuthTransitionsTotal *prometheus.CounterVec
	AuthFailures         *prometheus.CounterVec
	ActiveAuthFlows      prometheus.Gauge

	// Operation dispatch metrics
	OperationsTotal        *prometheus.CounterVec
	OperationErrors        *prometheus.CounterVec
	OperationDuration      prometheus.Histogram
	SingleFlightRejections prometheus.Counter
	ReauthRequired         prometheus.Counter

	// Export cache metrics
	ExportCacheHits   prometheus.Counter
	ExportCacheMisses prometheus.Counter

	// Poller metrics
	PollCyclesTotal *prometheus.CounterVec
	PollErrors      *prometheus.CounterVec
	TrackedSessions prometheus.Gauge

	// Telegram gateway metrics
	TelegramRateLimits prometheus.Counter

	// Kafka metrics
	KafkaMessagesProduced prometheus.Counter
	KafkaProduceErrors    *prometheus.CounterVec
}

var (
	// DefaultMetrics is the default metrics instance
	DefaultMetrics *Metrics
	once           sync.Once
)

// GetDefaultMetrics returns the singleton metrics instance
func GetDefaultMetrics() *Metrics {
	once.Do(func() {
		DefaultMetrics = NewMetrics()
	})
	return DefaultMetrics
}

func init() {
	// Initialize DefaultMetrics on package import
	GetDefaultMetrics()
}

// NewMetrics creates a new Metrics instance with all counters and gauges
func NewMetrics() *Metrics {
	return &Metrics{
		AuthTransitionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_console_auth_transitions_total",
				Help: "Total number of auth flow step transitions",
			},
			[]string{"step"},
		),
		AuthFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_console_auth_failures_total",
				Help: "Total number of auth flow failures by hint",
			},
			[]string{"hint"},
		),
		ActiveAuthFlows: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "session_console_active_auth_flows",
			Help: "Current number of in-progress auth flows",
		}),

		OperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_console_operations_total",
				Help: "Total number of dispatched console operations",
			},
			[]string{"operation"},
		),
		OperationErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_console_operation_errors_total",
				Help: "Total number of failed console operations",
			},
			[]string{"operation", "hint"},
		),
		OperationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "session_console_operation_duration_seconds",
			Help:    "Duration of console operations in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		SingleFlightRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "session_console_single_flight_rejections_total",
			Help: "Total number of operations dropped because the console was busy",
		}),
		ReauthRequired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "session_console_reauth_required_total",
			Help: "Total number of operations that hit an unauthorized session",
		}),

		ExportCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "session_console_export_cache_hits_total",
			Help: "Total number of exports served from stored artifacts",
		}),
		ExportCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "session_console_export_cache_misses_total",
			Help: "Total number of exports that required a fresh run",
		}),

		PollCyclesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_console_poll_cycles_total",
				Help: "Total number of poll cycles by loop",
			},
			[]string{"loop"},
		),
		PollErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_console_poll_errors_total",
				Help: "Total number of poll fetch errors by loop",
			},
			[]string{"loop"},
		),
		TrackedSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "session_console_tracked_sessions",
			Help: "Current number of sessions under poller management",
		}),

		TelegramRateLimits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "session_console_telegram_rate_limits_total",
			Help: "Total number of rate limit events from Telegram API",
		}),

		KafkaMessagesProduced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "session_console_kafka_messages_produced_total",
			Help: "Total number of audit events produced to Kafka",
		}),
		KafkaProduceErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_console_kafka_produce_errors_total",
				Help: "Total number of Kafka produce errors",
			},
			[]string{"error_type"},
		),
	}
}

// RecordAuthTransition records an auth flow step transition
func (m *Metrics) RecordAuthTransition(step string) {
	m.AuthTransitionsTotal.WithLabelValues(step).Inc()
}

// RecordAuthFailure records an auth flow failure with its hint
func (m *Metrics) RecordAuthFailure(hint string) {
	if hint == "" {
		hint = "unknown"
	}
	m.AuthFailures.WithLabelValues(hint).Inc()
}

// UpdateActiveAuthFlows updates the active auth flows gauge
func (m *Metrics) UpdateActiveAuthFlows(count int) {
	m.ActiveAuthFlows.Set(float64(count))
}

// RecordOperation records a dispatched operation with its duration
func (m *Metrics) RecordOperation(operation string, duration float64) {
	m.OperationsTotal.WithLabelValues(operation).Inc()
	m.OperationDuration.Observe(duration)
}

// RecordOperationError records a failed operation with its hint
func (m *Metrics) RecordOperationError(operation, hint string) {
	if hint == "" {
		hint = "unknown"
	}
	m.OperationErrors.WithLabelValues(operation, hint).Inc()
}

// RecordSingleFlightRejection records a dropped concurrent trigger
func (m *Metrics) RecordSingleFlightRejection() {
	m.SingleFlightRejections.Inc()
}

// RecordReauthRequired records an operation that found the session unauthorized
func (m *Metrics) RecordReauthRequired() {
	m.ReauthRequired.Inc()
}

// RecordExportCacheHit records an export served from stored artifacts
func (m *Metrics) RecordExportCacheHit() {
	m.ExportCacheHits.Inc()
}

// RecordExportCacheMiss records an export that ran fresh
func (m *Metrics) RecordExportCacheMiss() {
	m.ExportCacheMisses.Inc()
}

// RecordPollCycle records one completed poll cycle for a loop
func (m *Metrics) RecordPollCycle(loop string) {
	m.PollCyclesTotal.WithLabelValues(loop).Inc()
}

// RecordPollError records a failed fetch within a poll loop
func (m *Metrics) RecordPollError(loop string) {
	m.PollErrors.WithLabelValues(loop).Inc()
}

// UpdateTrackedSessions updates the tracked sessions gauge
func (m *Metrics) UpdateTrackedSessions(count int) {
	m.TrackedSessions.Set(float64(count))
}

// RecordTelegramRateLimit records a rate limit event from Telegram API
func (m *Metrics) RecordTelegramRateLimit() {
	m.TelegramRateLimits.Inc()
}

// RecordKafkaMessage records an audit event produced to Kafka
func (m *Metrics) RecordKafkaMessage() {
	m.KafkaMessagesProduced.Inc()
}

// RecordKafkaError records a Kafka production error with error type
func (m *Metrics) RecordKafkaError(errorType string) {
	if errorType == "" {
		errorType = "unknown"
	}
	m.KafkaProduceErrors.WithLabelValues(errorType).Inc()
}
