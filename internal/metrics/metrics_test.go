package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveToggle("follow", nil)
	m.ObserveToggle("follow", errors.New("x"))
	m.ObserveToggle("follow", nil)
	m.ObserveRepair("reconciler", "fan_add")
	m.ObserveAggregation("inbox", time.Now(), nil)
	m.SetQueueDepth(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.toggles.WithLabelValues("follow", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toggles.WithLabelValues("follow", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.repairs.WithLabelValues("reconciler", "fan_add")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.queueDepth))
	assert.Equal(t, 1, testutil.CollectAndCount(m.aggregation))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveToggle("like", nil)
		m.ObserveAggregation("feed", time.Now(), nil)
		m.ObserveRepair("x", "y")
		m.SetQueueDepth(1)
	})
}
