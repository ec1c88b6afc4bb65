package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for write event dispatch.
type Metrics struct {
	Accepted  *prometheus.CounterVec
	Rejected  *prometheus.CounterVec
	Failed    *prometheus.CounterVec
	QueueSize *prometheus.GaugeVec
}

// New registers the dispatch metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Accepted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "composite_dispatch_accepted_total",
			Help: "Events queued for publication by channel",
		}, []string{"channel"}),

		Rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "composite_dispatch_rejected_total",
			Help: "Events refused because the worker queue was full",
		}, []string{"channel"}),

		Failed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "composite_dispatch_publish_failed_total",
			Help: "Events the transport refused after being dequeued",
		}, []string{"channel"}),

		QueueSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "composite_dispatch_queue_depth",
			Help: "Events waiting in each worker queue",
		}, []string{"worker"}),
	}
}

func (m *Metrics) IncrementAccepted(channel string) {
	if m != nil {
		m.Accepted.WithLabelValues(channel).Inc()
	}
}

func (m *Metrics) IncrementRejected(channel string) {
	if m != nil {
		m.Rejected.WithLabelValues(channel).Inc()
	}
}

func (m *Metrics) IncrementFailed(channel string) {
	if m != nil {
		m.Failed.WithLabelValues(channel).Inc()
	}
}

// SetQueueDepth records the backlog of one worker.
func (m *Metrics) SetQueueDepth(worker string, depth int) {
	if m != nil {
		m.QueueSize.WithLabelValues(worker).Set(float64(depth))
	}
}
