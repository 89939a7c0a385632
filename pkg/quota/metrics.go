package quota

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the quota engine.
type Metrics struct {
	// Admission checks
	admissionChecks *prometheus.CounterVec
	denials         *prometheus.CounterVec

	// Usage recording
	usageIncrements  *prometheus.CounterVec
	incrementRetries prometheus.Counter
	incrementsLost   prometheus.Counter

	// Threshold monitoring
	usagePercent *prometheus.GaugeVec

	// Store latency
	storeOpDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance registered on the default
// Prometheus registry. Call at most once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		admissionChecks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sendgate_quota_checks_total",
				Help: "Total number of admission checks performed",
			},
			[]string{"channel", "result"},
		),

		denials: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sendgate_quota_denials_total",
				Help: "Total number of admission denials by violated window",
			},
			[]string{"reason"},
		),

		usageIncrements: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sendgate_usage_increments_total",
				Help: "Total number of committed usage counter increments",
			},
			[]string{"channel", "period"},
		),

		incrementRetries: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sendgate_usage_increment_retries_total",
				Help: "Total number of retried usage counter increments",
			},
		),

		incrementsLost: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sendgate_usage_increments_lost_total",
				Help: "Total number of usage increments lost after retry exhaustion (reconciliation events)",
			},
		),

		usagePercent: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sendgate_quota_usage_percent",
				Help: "Usage of a monitored window as a percentage of its ceiling",
			},
			[]string{"workspace", "channel", "period"},
		),

		storeOpDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sendgate_store_operation_duration_seconds",
				Help:    "Duration of counter store operations in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 100µs to ~400ms
			},
			[]string{"operation"},
		),
	}
}

// RecordCheck records an admission check result.
func (m *Metrics) RecordCheck(channel Channel, allowed bool) {
	if m == nil {
		return
	}
	result := "allowed"
	if !allowed {
		result = "denied"
	}
	m.admissionChecks.WithLabelValues(string(channel), result).Inc()
}

// RecordDenial records an admission denial by reason.
func (m *Metrics) RecordDenial(reason DenyReason) {
	if m == nil {
		return
	}
	m.denials.WithLabelValues(string(reason)).Inc()
}

// RecordIncrement records a committed usage increment.
func (m *Metrics) RecordIncrement(channel Channel, period PeriodType) {
	if m == nil {
		return
	}
	m.usageIncrements.WithLabelValues(string(channel), string(period)).Inc()
}

// RecordIncrementRetry records one retried increment attempt.
func (m *Metrics) RecordIncrementRetry() {
	if m == nil {
		return
	}
	m.incrementRetries.Inc()
}

// RecordIncrementLost records an increment lost after retry exhaustion.
func (m *Metrics) RecordIncrementLost() {
	if m == nil {
		return
	}
	m.incrementsLost.Inc()
}

// UpdateUsagePercent updates the usage gauge for a monitored window.
func (m *Metrics) UpdateUsagePercent(workspaceID string, channel Channel, period PeriodType, percent float64) {
	if m == nil {
		return
	}
	m.usagePercent.WithLabelValues(workspaceID, string(channel), string(period)).Set(percent)
}

// ObserveStoreOp records the duration of a counter store operation.
func (m *Metrics) ObserveStoreOp(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.storeOpDuration.WithLabelValues(operation).Observe(seconds)
}
