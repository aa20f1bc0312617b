package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	storeWriteDuration prometheus.Histogram
	storedRecordsTotal prometheus.Gauge

	searchDuration prometheus.Histogram
	searchTotal    prometheus.Counter

	recallDuration  *prometheus.HistogramVec
	recallTotal     *prometheus.CounterVec
	recallExpansion prometheus.Histogram

	consolidationRuns   prometheus.Counter
	consolidationEvents prometheus.Counter

	workingSetRefreshTotal prometheus.Counter
	workingSetSize         prometheus.Gauge

	ingestTotal *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			storeWriteDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "memory_store_write_duration_seconds",
					Help:    "Record store write duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			storedRecordsTotal: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "memory_records_total",
					Help: "Total records currently stored.",
				},
			),
			searchDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "memory_search_duration_seconds",
					Help:    "Hybrid search duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			searchTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "memory_search_total",
					Help: "Total hybrid search operations.",
				},
			),
			recallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "memory_recall_duration_seconds",
					Help:    "Divergent recall duration in seconds by mode.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"mode"},
			),
			recallTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "memory_recall_total",
					Help: "Total divergent recall operations by mode.",
				},
				[]string{"mode"},
			),
			recallExpansion: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "memory_recall_expanded_nodes",
					Help:    "Nodes reached beyond the seed set per recall.",
					Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
				},
			),
			consolidationRuns: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "memory_consolidation_runs_total",
					Help: "Total consolidation runs.",
				},
			),
			consolidationEvents: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "memory_consolidation_events_replayed_total",
					Help: "Total co-activation events replayed by consolidation.",
				},
			),
			workingSetRefreshTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "memory_workingset_refresh_total",
					Help: "Total working-set cache refreshes.",
				},
			),
			workingSetSize: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "memory_workingset_size",
					Help: "Entries currently held by the working-set cache.",
				},
			),
			ingestTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "memory_ingest_total",
					Help: "Total drop-directory ingests by status.",
				},
				[]string{"status"},
			),
		}

		prometheus.MustRegister(
			m.storeWriteDuration,
			m.storedRecordsTotal,
			m.searchDuration,
			m.searchTotal,
			m.recallDuration,
			m.recallTotal,
			m.recallExpansion,
			m.consolidationRuns,
			m.consolidationEvents,
			m.workingSetRefreshTotal,
			m.workingSetSize,
			m.ingestTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// MetricsHandler exposes the default registry over HTTP.
func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordStoreWrite(duration time.Duration) {
	getMetrics().storeWriteDuration.Observe(duration.Seconds())
}

func SetStoredRecords(total int) {
	getMetrics().storedRecordsTotal.Set(float64(total))
}

func RecordSearch(duration time.Duration) {
	m := getMetrics()
	m.searchTotal.Inc()
	m.searchDuration.Observe(duration.Seconds())
}

// RecordRecall observes one recall run. Mode is "commit" for normal
// runs and "diagnostic" for read-only runs.
func RecordRecall(mode string, duration time.Duration, expandedNodes int) {
	m := getMetrics()
	m.recallTotal.WithLabelValues(mode).Inc()
	m.recallDuration.WithLabelValues(mode).Observe(duration.Seconds())
	m.recallExpansion.Observe(float64(expandedNodes))
}

func RecordConsolidation(eventsReplayed int) {
	m := getMetrics()
	m.consolidationRuns.Inc()
	m.consolidationEvents.Add(float64(eventsReplayed))
}

func RecordWorkingSetRefresh(size int) {
	m := getMetrics()
	m.workingSetRefreshTotal.Inc()
	m.workingSetSize.Set(float64(size))
}

func RecordIngest(success bool) {
	status := "error"
	if success {
		status = "success"
	}
	getMetrics().ingestTotal.WithLabelValues(status).Inc()
}
