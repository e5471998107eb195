package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the engine collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	toggles     *prometheus.CounterVec
	aggregation *prometheus.HistogramVec
	repairs     *prometheus.CounterVec
	queueDepth  prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		toggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ideagraph",
			Name:      "toggles_total",
			Help:      "Toggle operations by kind and outcome.",
		}, []string{"op", "outcome"}),
		aggregation: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ideagraph",
			Name:      "aggregation_duration_seconds",
			Help:      "Latency of derived view composition.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"view", "outcome"}),
		repairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ideagraph",
			Name:      "repairs_total",
			Help:      "Inverse side-writes healed outside the request path.",
		}, []string{"source", "kind"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ideagraph",
			Name:      "replicator_queue_depth",
			Help:      "Sampled length of the in-process replication queue.",
		}),
	}
	reg.MustRegister(m.toggles, m.aggregation, m.repairs, m.queueDepth)
	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) ObserveToggle(op string, err error) {
	if m == nil {
		return
	}
	m.toggles.WithLabelValues(op, outcome(err)).Inc()
}

func (m *Metrics) ObserveAggregation(view string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.aggregation.WithLabelValues(view, outcome(err)).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveRepair(source, kind string) {
	if m == nil {
		return
	}
	m.repairs.WithLabelValues(source, kind).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
