// Package metrics exposes Prometheus collectors for container activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the container's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	messages    *prometheus.CounterVec
	outbound    *prometheus.CounterVec
	extractions *prometheus.CounterVec
	pagesActive prometheus.Gauge
}

// New constructs Metrics registered on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	messages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "container",
			Name:      "inbound_messages_total",
			Help:      "Cross-document messages received, by channel, type and outcome.",
		},
		[]string{"channel", "type", "outcome"},
	)
	outbound := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "container",
			Name:      "outbound_messages_total",
			Help:      "Messages posted into the embedded documents.",
		},
		[]string{"target", "type"},
	)
	extractions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "container",
			Name:      "extraction_requests_total",
			Help:      "Content extraction attempts by outcome.",
		},
		[]string{"outcome"},
	)
	pagesActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "container",
			Name:      "pages_active",
			Help:      "Host pages currently connected through the bridge.",
		},
	)

	reg.MustRegister(messages, outbound, extractions, pagesActive)

	return &Metrics{
		registry:    reg,
		messages:    messages,
		outbound:    outbound,
		extractions: extractions,
		pagesActive: pagesActive,
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveInbound counts an inbound message.
func (m *Metrics) ObserveInbound(channel, msgType, outcome string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(channel, msgType, outcome).Inc()
}

// ObserveOutbound counts an outbound message.
func (m *Metrics) ObserveOutbound(target, msgType string) {
	if m == nil {
		return
	}
	m.outbound.WithLabelValues(target, msgType).Inc()
}

// ObserveExtraction counts an extraction attempt.
func (m *Metrics) ObserveExtraction(outcome string) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(outcome).Inc()
}

// PageOpened increments the active page gauge.
func (m *Metrics) PageOpened() {
	if m == nil {
		return
	}
	m.pagesActive.Inc()
}

// PageClosed decrements the active page gauge.
func (m *Metrics) PageClosed() {
	if m == nil {
		return
	}
	m.pagesActive.Dec()
}
