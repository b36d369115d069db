package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectors(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(WithRegistry(reg), WithNamespace("test"))

	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	m.Handshake("bound")
	m.Handshake("bound")
	m.Dropped("decode")

	if got := testutil.ToFloat64(m.activeSessions); got != 1 {
		t.Errorf("active sessions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.handshakes.WithLabelValues("bound")); got != 2 {
		t.Errorf("bound handshakes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.dropped.WithLabelValues("decode")); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}

	count, err := testutil.GatherAndCount(reg, "test_active_sessions")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("registered active_sessions series = %d, want 1", count)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.SessionOpened()
	m.SessionClosed()
	m.Handshake("x")
	m.OperationReceived("x")
	m.SendResult("x")
	m.Disconnect("x")
	m.Dropped("x")
}
