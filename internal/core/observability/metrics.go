// Package observability holds the Prometheus collectors for the pipeline and
// its collaborators.
package observability

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
		[]string{"method", "route", "status"},
	)

	ingestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_batches_total",
			Help: "Ingestion batches by format and outcome.",
		},
		[]string{"format", "outcome"},
	)

	ingestRecords = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_batch_records",
			Help:    "Number of records in accepted batches.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	filterDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "filter_evaluation_seconds",
			Help:    "Time spent evaluating filter criteria over a dataset.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
	)

	visibleRecords = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "filter_visible_records",
			Help:    "Size of the visible set after evaluation.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	exportTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "export_total",
			Help: "Exports produced by format.",
		},
		[]string{"format"},
	)

	datasetOpTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_op_total",
			Help: "Dataset store operations by op and result.",
		},
		[]string{"op", "result"},
	)

	redisOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Latency of redis operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"op"},
	)

	parseCacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parse_cache_results_total",
			Help: "Parse cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Pipeline sessions currently held in memory.",
		},
	)

	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_events_total",
			Help: "Dataset change events by direction and result.",
		},
		[]string{"direction", "result"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds,
		ingestTotal, ingestRecords,
		filterDurationSeconds, visibleRecords,
		exportTotal,
		datasetOpTotal, redisOpDuration,
		parseCacheResults, sessionsActive,
		eventsTotal,
	}
}

// Init registers the collectors on reg. Observations made before Init, or
// when Init is never called, are kept but not exported. Registering twice on
// the same registry is a no-op.
func Init(reg prometheus.Registerer) {
	if reg == nil {
		return
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				panic(err)
			}
		}
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveIngest(format string, records int, err error) {
	if err != nil {
		ingestTotal.WithLabelValues(format, "rejected").Inc()
		return
	}
	ingestTotal.WithLabelValues(format, "accepted").Inc()
	ingestRecords.Observe(float64(records))
}

func ObserveFilter(durationSeconds float64, visible int) {
	filterDurationSeconds.Observe(durationSeconds)
	visibleRecords.Observe(float64(visible))
}

func IncExport(format string) {
	exportTotal.WithLabelValues(format).Inc()
}

func ObserveDatasetOp(op string, err error) {
	datasetOpTotal.WithLabelValues(op, result(err)).Inc()
}

func ObserveRedisOp(op string, durationSeconds float64) {
	redisOpDuration.WithLabelValues(op).Observe(durationSeconds)
}

func IncParseCache(hit bool) {
	if hit {
		parseCacheResults.WithLabelValues("hit").Inc()
		return
	}
	parseCacheResults.WithLabelValues("miss").Inc()
}

func SetSessionsActive(n int) {
	sessionsActive.Set(float64(n))
}

func ObserveEvent(direction string, err error) {
	eventsTotal.WithLabelValues(direction, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
