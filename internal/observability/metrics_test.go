package observability

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_IsolatedRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.RecordEvent("new_message")
	m.RecordEvent("new_message")
	m.RecordEvent("reaction_added")

	expected := `
		# HELP neobot_events_total Total number of inbound platform events by type
		# TYPE neobot_events_total counter
		neobot_events_total{type="new_message"} 2
		neobot_events_total{type="reaction_added"} 1
	`
	if err := testutil.CollectAndCompare(m.EventCounter, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}
}

func TestRecordLifecycle(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordLifecycle("create", "success")
	m.RecordLifecycle("create", "failure")
	m.RecordLifecycle("create", "success")

	if got := testutil.ToFloat64(m.LifecycleCounter.WithLabelValues("create", "success")); got != 2 {
		t.Errorf("create/success = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.LifecycleCounter.WithLabelValues("create", "failure")); got != 1 {
		t.Errorf("create/failure = %v, want 1", got)
	}
}

func TestSetActiveScripts(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.SetActiveScripts(3)
	if got := testutil.ToFloat64(m.ActiveScripts); got != 3 {
		t.Errorf("ActiveScripts = %v, want 3", got)
	}
}

func TestRecordHook(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordHook("OnMessage", "executed", 0.01)
	m.RecordHook("OnMessage", "fault", 0.02)
	m.RecordHook("OnMessage", "not_found", 0)

	if got := testutil.ToFloat64(m.HookCounter.WithLabelValues("OnMessage", "not_found")); got != 1 {
		t.Errorf("not_found = %v, want 1", got)
	}
	// not_found does not observe a duration
	if count := testutil.CollectAndCount(m.HookDuration); count != 1 {
		t.Errorf("HookDuration series = %d, want 1", count)
	}
}

func TestRecordTransport(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.RecordTransport("react", "success", 0.1)
	m.RecordTransport("react", "RATE_LIMIT_ERROR", 0.2)

	if count := testutil.CollectAndCount(m.TransportCounter); count != 2 {
		t.Errorf("TransportCounter series = %d, want 2", count)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordEvent("new_message")
	m.RecordLifecycle("create", "success")
	m.SetActiveScripts(1)
	m.RecordHook("OnMessage", "executed", 1)
	m.RecordTransport("react", "success", 1)
}
