package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the aggregate read and write paths.
type Metrics struct {
	// Full getAggregate latency by outcome
	AggregateLatency *prometheus.HistogramVec

	// Collaborator call latency including retries and fallback
	CollaboratorLatency *prometheus.HistogramVec

	// Secondary reads replaced by an empty list
	DegradedSecondary *prometheus.CounterVec

	// Fallback invocations by breaker
	Fallbacks *prometheus.CounterVec

	// 0 closed, 1 half-open, 2 open
	CircuitState *prometheus.GaugeVec

	// Composite writes by operation and outcome
	Writes *prometheus.CounterVec
}

// New registers the composite metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AggregateLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "composite_aggregate_duration_seconds",
			Help:    "Duration of aggregate reads including all collaborator calls",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"outcome"}),

		CollaboratorLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "composite_collaborator_duration_seconds",
			Help:    "Duration of guarded collaborator calls",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"collaborator"}),

		DegradedSecondary: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "composite_degraded_secondary_total",
			Help: "Secondary reads that failed and were served as empty lists",
		}, []string{"collaborator"}),

		Fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "composite_fallback_total",
			Help: "Calls answered by a fallback producer",
		}, []string{"breaker"}),

		CircuitState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "composite_circuit_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		}, []string{"breaker"}),

		Writes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "composite_writes_total",
			Help: "Composite create and delete requests by outcome",
		}, []string{"operation", "outcome"}),
	}
}

func (m *Metrics) ObserveAggregateLatency(outcome string, d time.Duration) {
	if m != nil {
		m.AggregateLatency.WithLabelValues(outcome).Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveCollaboratorLatency(collaborator string, d time.Duration) {
	if m != nil {
		m.CollaboratorLatency.WithLabelValues(collaborator).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementDegraded(collaborator string) {
	if m != nil {
		m.DegradedSecondary.WithLabelValues(collaborator).Inc()
	}
}

func (m *Metrics) IncrementFallback(breaker string) {
	if m != nil {
		m.Fallbacks.WithLabelValues(breaker).Inc()
	}
}

// SetCircuitState records a breaker state by its name.
func (m *Metrics) SetCircuitState(breaker, state string) {
	if m == nil {
		return
	}
	v := 0.0
	switch state {
	case "HALF_OPEN":
		v = 1
	case "OPEN":
		v = 2
	}
	m.CircuitState.WithLabelValues(breaker).Set(v)
}

func (m *Metrics) IncrementWrite(operation, outcome string) {
	if m != nil {
		m.Writes.WithLabelValues(operation, outcome).Inc()
	}
}
