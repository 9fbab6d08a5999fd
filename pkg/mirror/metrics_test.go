package mirror

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.transition("mapped")
	m.transition("mapped")
	m.transition("deleted")
	m.dispatchFailed("edit")
	m.catchUpItem("skipped")
	m.setCheckpoint(42)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("mapped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("deleted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatchFailures.WithLabelValues("edit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.catchUpItems.WithLabelValues("skipped")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.checkpoint))
	assert.Equal(t, 4, testutil.CollectAndCount(m.transitions)+testutil.CollectAndCount(m.dispatchFailures)+testutil.CollectAndCount(m.catchUpItems))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.transition("mapped")
		m.dispatchFailed("new")
		m.catchUpItem("failed")
		m.setCheckpoint(1)
	})
}
