package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RevalidationMetrics records the outcomes of cart revalidation sweeps.
type RevalidationMetrics struct {
	sweeps   prometheus.Counter
	outcomes *prometheus.CounterVec
}

// NewRevalidationMetrics registers the revalidation metrics on the provided registerer.
func NewRevalidationMetrics(reg prometheus.Registerer) *RevalidationMetrics {
	if reg == nil {
		return &RevalidationMetrics{}
	}
	sweeps := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_revalidation_sweeps_total",
		Help: "Cart revalidation sweeps run.",
	})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_revalidation_lines_total",
		Help: "Cart lines adjusted during revalidation, by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(sweeps, outcomes)
	return &RevalidationMetrics{
		sweeps:   sweeps,
		outcomes: outcomes,
	}
}

// ObserveSweep counts one sweep and the lines it touched.
func (m *RevalidationMetrics) ObserveSweep(dropped, clamped, deselected, errored int) {
	if m == nil || m.sweeps == nil {
		return
	}
	m.sweeps.Inc()
	m.outcomes.WithLabelValues("dropped").Add(float64(dropped))
	m.outcomes.WithLabelValues("clamped").Add(float64(clamped))
	m.outcomes.WithLabelValues("deselected").Add(float64(deselected))
	m.outcomes.WithLabelValues("errored").Add(float64(errored))
}
