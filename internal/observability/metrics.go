package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus metrics for the script engine and the chat
// transport.
//
// Usage:
//
//	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
//	metrics.RecordLifecycle("create", "success")
//	metrics.RecordHook("OnMessage", "executed", time.Since(start).Seconds())
//
// All methods are nil-safe so components can run without metrics.
type Metrics struct {
	// EventCounter counts inbound platform events.
	// Labels: type (new_message|message_edited|reaction_added|session_ready)
	EventCounter *prometheus.CounterVec

	// LifecycleCounter counts lifecycle transitions.
	// Labels: action (create|replace|remove|enable|disable), result (success|failure)
	LifecycleCounter *prometheus.CounterVec

	// ActiveScripts is the number of live script instances.
	ActiveScripts prometheus.Gauge

	// HookCounter counts hook invocation outcomes.
	// Labels: hook, outcome (executed|fault|not_found|skipped)
	HookCounter *prometheus.CounterVec

	// HookDuration measures hook execution time in seconds.
	// Labels: hook
	HookDuration *prometheus.HistogramVec

	// TransportCounter counts outbound transport calls.
	// Labels: op (reply|react|send|delete|...), status (success|error code)
	TransportCounter *prometheus.CounterVec

	// TransportDuration measures outbound transport latency in seconds.
	// Labels: op
	TransportDuration *prometheus.HistogramVec
}

// NewMetrics creates the metrics and registers them with reg. A nil reg
// registers with the Prometheus default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		EventCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neobot_events_total",
				Help: "Total number of inbound platform events by type",
			},
			[]string{"type"},
		),

		LifecycleCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neobot_script_lifecycle_total",
				Help: "Total number of script lifecycle transitions by action and result",
			},
			[]string{"action", "result"},
		),

		ActiveScripts: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "neobot_scripts_active",
				Help: "Current number of live script instances",
			},
		),

		HookCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neobot_hook_invocations_total",
				Help: "Total number of hook invocations by hook and outcome",
			},
			[]string{"hook", "outcome"},
		),

		HookDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "neobot_hook_duration_seconds",
				Help:    "Duration of hook invocations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"hook"},
		),

		TransportCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neobot_transport_calls_total",
				Help: "Total number of outbound transport calls by operation and status",
			},
			[]string{"op", "status"},
		),

		TransportDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "neobot_transport_duration_seconds",
				Help:    "Duration of outbound transport calls in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"op"},
		),
	}
}

// RecordEvent counts an inbound event.
func (m *Metrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.EventCounter.WithLabelValues(eventType).Inc()
}

// RecordLifecycle counts a lifecycle transition.
//
// Example:
//
//	metrics.RecordLifecycle("create", "failure")
func (m *Metrics) RecordLifecycle(action, result string) {
	if m == nil {
		return
	}
	m.LifecycleCounter.WithLabelValues(action, result).Inc()
}

// SetActiveScripts sets the live instance gauge.
func (m *Metrics) SetActiveScripts(n int) {
	if m == nil {
		return
	}
	m.ActiveScripts.Set(float64(n))
}

// RecordHook records one hook invocation outcome. Duration is only observed
// for invocations that actually ran.
func (m *Metrics) RecordHook(hook, outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HookCounter.WithLabelValues(hook, outcome).Inc()
	if outcome == "executed" || outcome == "fault" {
		m.HookDuration.WithLabelValues(hook).Observe(durationSeconds)
	}
}

// RecordTransport records one outbound transport call.
//
// Example:
//
//	metrics.RecordTransport("react", "success", time.Since(start).Seconds())
func (m *Metrics) RecordTransport(op, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.TransportCounter.WithLabelValues(op, status).Inc()
	m.TransportDuration.WithLabelValues(op).Observe(durationSeconds)
}
