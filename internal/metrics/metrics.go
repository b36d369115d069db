// Package metrics exposes the Prometheus collectors of the session server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "sessnet").
	Namespace string

	// Registry is the Prometheus registry to use.
	// Default: a fresh registry, so several servers can live in one process.
	Registry prometheus.Registerer
}

// Option configures the collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	activeSessions prometheus.Gauge
	handshakes     *prometheus.CounterVec
	operations     *prometheus.CounterVec
	sendResults    *prometheus.CounterVec
	disconnects    *prometheus.CounterVec
	dropped        *prometheus.CounterVec
}

// New registers the collectors.
//
// Metrics collected:
//   - sessnet_active_sessions: Gauge of live transport sessions
//   - sessnet_handshakes_total: Counter of handshakes by outcome
//   - sessnet_operations_received_total: Counter of decoded operations by type
//   - sessnet_send_results_total: Counter of emit results
//   - sessnet_disconnects_total: Counter of Disconnect frames sent by reason
//   - sessnet_frames_dropped_total: Counter of dropped inbound frames by cause
func New(opts ...Option) *Metrics {
	cfg := Config{Namespace: "sessnet"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	factory := promauto.With(cfg.Registry)

	return &Metrics{
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "active_sessions",
			Help:      "Number of live transport sessions",
		}),
		handshakes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "handshakes_total",
			Help:      "Total handshakes by outcome",
		}, []string{"outcome"}),
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "operations_received_total",
			Help:      "Total decoded inbound operations by type",
		}, []string{"type"}),
		sendResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "send_results_total",
			Help:      "Total emit attempts by result",
		}, []string{"result"}),
		disconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "disconnects_total",
			Help:      "Total Disconnect operations sent by reason",
		}, []string{"reason"}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "frames_dropped_total",
			Help:      "Total inbound frames dropped by cause",
		}, []string{"cause"}),
	}
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

func (m *Metrics) Handshake(outcome string) {
	if m == nil {
		return
	}
	m.handshakes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) OperationReceived(opType string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(opType).Inc()
}

func (m *Metrics) SendResult(result string) {
	if m == nil {
		return
	}
	m.sendResults.WithLabelValues(result).Inc()
}

func (m *Metrics) Disconnect(reason string) {
	if m == nil {
		return
	}
	m.disconnects.WithLabelValues(reason).Inc()
}

func (m *Metrics) Dropped(cause string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(cause).Inc()
}
