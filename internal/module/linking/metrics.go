package linking

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds linking module metrics.
type Metrics struct {
	ClaimsTotal   *prometheus.CounterVec
	RequestsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers linking metrics.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "splitmate"
	}

	return &Metrics{
		ClaimsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "linking",
				Name:      "claims_total",
				Help:      "Invite token claim attempts by outcome",
			},
			[]string{"outcome"},
		),
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "linking",
				Name:      "requests_total",
				Help:      "Link request operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
	}
}

// observeClaim records a claim outcome.
func (m *Metrics) observeClaim(outcome string) {
	if m == nil {
		return
	}
	m.ClaimsTotal.WithLabelValues(outcome).Inc()
}

// observeRequest records a request operation outcome.
func (m *Metrics) observeRequest(operation, outcome string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(operation, outcome).Inc()
}
