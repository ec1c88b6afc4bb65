package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the last probe result of each collaborator.
type Metrics struct {
	ProbeUp *prometheus.GaugeVec
}

func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ProbeUp: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "composite_collaborator_up",
			Help: "1 when the last liveness probe of the collaborator reported UP",
		}, []string{"collaborator"}),
	}
}

func (m *Metrics) SetProbe(collaborator string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.ProbeUp.WithLabelValues(collaborator).Set(v)
}
