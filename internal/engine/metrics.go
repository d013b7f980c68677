package engine

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/hyperplay/internal/ir"
)

// Metrics exposes engine activity as Prometheus collectors on a private
// registry. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	propagations     prometheus.Counter
	propagationSteps prometheus.Histogram
	transitions      *prometheus.CounterVec
	linkFirings      prometheus.Counter
	ticks            prometheus.Counter
	delayedActions   prometheus.Gauge
}

// NewMetrics creates collectors under namespace and registers them.
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		propagations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "propagations_total",
			Help:      "Total number of action propagations",
		}),
		propagationSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "propagation_steps",
			Help:      "Actions popped per propagation",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Event transitions by type, transition and outcome",
			},
			[]string{"type", "transition", "result"},
		),
		linkFirings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_firings_total",
			Help:      "Total number of link firings",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Total number of engine ticks",
		}),
		delayedActions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "delayed_actions",
			Help:      "Actions waiting for their delay to elapse",
		}),
	}

	registry.MustRegister(
		m.propagations,
		m.propagationSteps,
		m.transitions,
		m.linkFirings,
		m.ticks,
		m.delayedActions,
	)
	return m
}

// Registry returns the registry holding the engine collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observePropagation(steps int) {
	if m == nil {
		return
	}
	m.propagations.Inc()
	m.propagationSteps.Observe(float64(steps))
}

func (m *Metrics) observeTransition(typ ir.EventType, tr ir.Transition, accepted bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	m.transitions.WithLabelValues(typ.String(), tr.String(), result).Inc()
}

func (m *Metrics) observeLinkFiring() {
	if m == nil {
		return
	}
	m.linkFirings.Inc()
}

func (m *Metrics) observeTick() {
	if m == nil {
		return
	}
	m.ticks.Inc()
}

func (m *Metrics) setDelayed(n int) {
	if m == nil {
		return
	}
	m.delayedActions.Set(float64(n))
}
