package mirror

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the mirror's Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	transitions      *prometheus.CounterVec
	dispatchFailures *prometheus.CounterVec
	catchUpItems     *prometheus.CounterVec
	checkpoint       prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dmmirror",
			Name:      "transitions_total",
			Help:      "Committed message state transitions.",
		}, []string{"transition"}),
		dispatchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dmmirror",
			Name:      "dispatch_failures_total",
			Help:      "Events dropped after the destination send failed.",
		}, []string{"event"}),
		catchUpItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dmmirror",
			Name:      "catchup_items_total",
			Help:      "Historical messages handled by catch-up, by result.",
		}, []string{"result"}),
		checkpoint: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dmmirror",
			Name:      "checkpoint_source_id",
			Help:      "Highest durably processed source message id.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.transitions, m.dispatchFailures, m.catchUpItems, m.checkpoint)
	}
	return m
}

func (m *Metrics) transition(name string) {
	if m != nil {
		m.transitions.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) dispatchFailed(event string) {
	if m != nil {
		m.dispatchFailures.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) catchUpItem(result string) {
	if m != nil {
		m.catchUpItems.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) setCheckpoint(id SourceID) {
	if m != nil {
		m.checkpoint.Set(float64(id))
	}
}
