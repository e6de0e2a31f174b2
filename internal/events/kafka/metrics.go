package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metricSet struct {
	apply    *prometheus.CounterVec
	proc     *prometheus.HistogramVec
	lagGauge prometheus.Gauge
}

func newMetricSet(r prometheus.Registerer) *metricSet {
	m := &metricSet{
		apply: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dataset_event_apply_total",
				Help: "Actions taken for consumed dataset events.",
			},
			[]string{"action"},
		),
		proc: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dataset_event_processing_seconds",
				Help:    "Processing time for one consumed dataset event.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
			},
			[]string{"op"},
		),
		lagGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dataset_event_lag_seconds",
				Help: "Approximate lag: now - message.timestamp.",
			},
		),
	}
	if r != nil {
		r.MustRegister(m.apply, m.proc, m.lagGauge)
	}
	return m
}
