// Package telemetry holds the Prometheus collectors for the token service.
// Everything is registered on a private registry so tests and multiple
// service instances in one process do not collide.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tabtoken"

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	issued      *prometheus.CounterVec
	issueTime   *prometheus.HistogramVec
	validations *prometheus.CounterVec
	gate        *prometheus.CounterVec
}

// New creates the collectors. Go runtime and process collectors are included.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		issued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issuances_total",
			Help:      "Token pair issuance attempts by client and outcome.",
		}, []string{"client_id", "operation", "outcome"}),
		issueTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "issuance_duration_seconds",
			Help:      "Time spent issuing a token pair.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"operation"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Token validations by client and result.",
		}, []string{"client_id", "result"}),
		gate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_decisions_total",
			Help:      "Service-to-service admission decisions by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.issued, m.issueTime, m.validations, m.gate,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveIssuance records one Issue or Refresh call. A nil receiver is a no-op.
func (m *Metrics) ObserveIssuance(clientID, operation, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.issued.WithLabelValues(clientID, operation, outcome).Inc()
	m.issueTime.WithLabelValues(operation).Observe(took.Seconds())
}

// ObserveValidation records one introspection result ("valid", "expired", ...).
func (m *Metrics) ObserveValidation(clientID, result string) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(clientID, result).Inc()
}

// ObserveGate records one admission decision. It has the authn.Observer
// signature so it can be handed to authn.WithObserver directly.
func (m *Metrics) ObserveGate(outcome string) {
	if m == nil {
		return
	}
	m.gate.WithLabelValues(outcome).Inc()
}

// IssuedCount is the current value of the issuance counter, for tests.
func (m *Metrics) IssuedCount(clientID, operation, outcome string) float64 {
	return counterValue(m.issued.WithLabelValues(clientID, operation, outcome))
}

// GateCount is the current value of the gate counter, for tests.
func (m *Metrics) GateCount(outcome string) float64 {
	return counterValue(m.gate.WithLabelValues(outcome))
}
