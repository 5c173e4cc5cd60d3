// Package metrics provides Prometheus metrics for the omajinai performance
// service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector used by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Beatmap cache
	beatmapCacheHits      prometheus.Counter
	beatmapCacheMisses    prometheus.Counter
	beatmapCacheEvictions prometheus.Counter
	beatmapCacheSize      prometheus.Gauge
	beatmapFetches        prometheus.Counter
	beatmapFetchErrors    prometheus.Counter

	// Performance calculation
	calculations       prometheus.Counter
	calculationErrors  prometheus.Counter
	calculationLatency prometheus.Histogram
	resultCacheHits    prometheus.Counter

	// Recalculation passes
	recalcPasses          prometheus.Counter
	recalcPassDuration    prometheus.Histogram
	recalcScoresOK        *prometheus.CounterVec
	recalcScoresFailed    *prometheus.CounterVec
	recalcUsersOK         *prometheus.CounterVec
	recalcUsersFailed     *prometheus.CounterVec
	recalcTriggersDropped prometheus.Counter

	// Ranking store
	rankingWrites      prometheus.Counter
	rankingWriteErrors prometheus.Counter

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid the default Go collectors.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "omajinai",
		subsystem:        "performance",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.beatmapCacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "beatmap_cache_hits_total",
		Help:      "Total number of beatmap cache hits",
	})

	m.beatmapCacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "beatmap_cache_misses_total",
		Help:      "Total number of beatmap cache misses",
	})

	m.beatmapCacheEvictions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "beatmap_cache_evictions_total",
		Help:      "Total number of beatmap cache evictions",
	})

	m.beatmapCacheSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "beatmap_cache_size",
		Help:      "Current number of cached beatmaps",
	})

	m.beatmapFetches = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "beatmap_fetches_total",
		Help:      "Total number of remote beatmap fetches",
	})

	m.beatmapFetchErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "beatmap_fetch_errors_total",
		Help:      "Total number of failed remote beatmap fetches",
	})

	m.calculations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "calculations_total",
		Help:      "Total number of performance calculations",
	})

	m.calculationErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "calculation_errors_total",
		Help:      "Total number of failed performance calculations",
	})

	m.calculationLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "calculation_latency_milliseconds",
		Help:      "Histogram of performance calculation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.resultCacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "result_cache_hits_total",
		Help:      "Total number of fingerprint result cache hits",
	})

	m.recalcPasses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recalc_passes_total",
		Help:      "Total number of completed recalculation passes",
	})

	m.recalcPassDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recalc_pass_duration_seconds",
		Help:      "Histogram of full recalculation pass duration in seconds",
		Buckets:   []float64{1, 10, 60, 300, 900, 1800, 3600},
	})

	m.recalcScoresOK = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "recalc_scores_updated_total",
			Help:      "Total number of scores updated during recalculation, by mode",
		},
		[]string{"mode"},
	)

	m.recalcScoresFailed = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "recalc_scores_failed_total",
			Help:      "Total number of scores skipped due to errors during recalculation, by mode",
		},
		[]string{"mode"},
	)

	m.recalcUsersOK = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "recalc_users_updated_total",
			Help:      "Total number of user stats updated during recalculation, by mode",
		},
		[]string{"mode"},
	)

	m.recalcUsersFailed = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "recalc_users_failed_total",
			Help:      "Total number of users skipped due to errors during recalculation, by mode",
		},
		[]string{"mode"},
	)

	m.recalcTriggersDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recalc_triggers_dropped_total",
		Help:      "Total number of triggers dropped because a pass was already running",
	})

	m.rankingWrites = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ranking_writes_total",
		Help:      "Total number of leaderboard sorted-set writes",
	})

	m.rankingWriteErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ranking_write_errors_total",
		Help:      "Total number of failed leaderboard sorted-set writes",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)
}

// Package-level helpers operating on the global manager.

// RecordBeatmapCacheHit increments the beatmap cache hit counter.
func RecordBeatmapCacheHit() { globalManager.beatmapCacheHits.Inc() }

// RecordBeatmapCacheMiss increments the beatmap cache miss counter.
func RecordBeatmapCacheMiss() { globalManager.beatmapCacheMisses.Inc() }

// RecordBeatmapCacheEviction adds n to the eviction counter.
func RecordBeatmapCacheEviction(n int) { globalManager.beatmapCacheEvictions.Add(float64(n)) }

// UpdateBeatmapCacheSize sets the current cache size gauge.
func UpdateBeatmapCacheSize(size int) { globalManager.beatmapCacheSize.Set(float64(size)) }

// RecordBeatmapFetch increments the remote fetch counter.
func RecordBeatmapFetch() { globalManager.beatmapFetches.Inc() }

// RecordBeatmapFetchError increments the remote fetch error counter.
func RecordBeatmapFetchError() { globalManager.beatmapFetchErrors.Inc() }

// RecordCalculation increments the calculation counter.
func RecordCalculation() { globalManager.calculations.Inc() }

// RecordCalculationError increments the calculation error counter.
func RecordCalculationError() { globalManager.calculationErrors.Inc() }

// RecordCalculationLatency records one calculation latency sample.
func RecordCalculationLatency(latencyMs float64) {
	globalManager.calculationLatency.Observe(latencyMs)
}

// RecordResultCacheHit increments the fingerprint cache hit counter.
func RecordResultCacheHit() { globalManager.resultCacheHits.Inc() }

// RecordRecalcPass increments the completed pass counter.
func RecordRecalcPass() { globalManager.recalcPasses.Inc() }

// RecordRecalcPassDuration records one full-pass duration sample.
func RecordRecalcPassDuration(seconds float64) {
	globalManager.recalcPassDuration.Observe(seconds)
}

// RecordRecalcScoreUpdated increments the per-mode score update counter.
func RecordRecalcScoreUpdated(mode string) { globalManager.recalcScoresOK.WithLabelValues(mode).Inc() }

// RecordRecalcScoreFailed increments the per-mode score failure counter.
func RecordRecalcScoreFailed(mode string) {
	globalManager.recalcScoresFailed.WithLabelValues(mode).Inc()
}

// RecordRecalcUserUpdated increments the per-mode user update counter.
func RecordRecalcUserUpdated(mode string) { globalManager.recalcUsersOK.WithLabelValues(mode).Inc() }

// RecordRecalcUserFailed increments the per-mode user failure counter.
func RecordRecalcUserFailed(mode string) {
	globalManager.recalcUsersFailed.WithLabelValues(mode).Inc()
}

// RecordRecalcTriggerDropped increments the dropped trigger counter.
func RecordRecalcTriggerDropped() { globalManager.recalcTriggersDropped.Inc() }

// RecordRankingWrite increments the leaderboard write counter.
func RecordRankingWrite() { globalManager.rankingWrites.Inc() }

// RecordRankingWriteError increments the leaderboard write error counter.
func RecordRankingWriteError() { globalManager.rankingWriteErrors.Inc() }

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records one HTTP request duration sample.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// GetRegistry returns the custom registry serving /metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
