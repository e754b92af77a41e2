package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/course-rec-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry                 *prometheus.Registry
	handler                  http.Handler
	requestDuration          *prometheus.HistogramVec
	requestTotal             *prometheus.CounterVec
	cacheLatency             prometheus.Observer
	cacheWrite               prometheus.Observer
	cacheHitRatio            prometheus.Gauge
	cacheHits                prometheus.Counter
	cacheMisses              prometheus.Counter
	dbQueryDuration          *prometheus.HistogramVec
	recommendationRuns       prometheus.Counter
	recommendationDuration   prometheus.Histogram
	recommendationCandidates prometheus.Histogram
	prereqInconsistencies    prometheus.Counter
	reportQueueDepth         prometheus.Gauge
	reportJobs               *prometheus.CounterVec

	cacheHitCount             uint64
	cacheMissCount            uint64
	requestCount              uint64
	requestDurationTotal      uint64
	dbQueryCount              uint64
	dbQueryDurationTotal      uint64
	recommendationRunCount    uint64
	recommendationCandidateNr uint64
	inconsistencyCount        uint64
	reportQueueDepthValue     int64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	recommendationRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recommendation_runs_total",
		Help: "Total recommendation generation runs",
	})

	recommendationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "recommendation_run_duration_seconds",
		Help:    "Duration of recommendation generation runs",
		Buckets: prometheus.DefBuckets,
	})

	recommendationCandidates := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "recommendation_candidates",
		Help:    "Number of candidate courses returned per run",
		Buckets: []float64{0, 5, 10, 25, 50, 100, 250, 500},
	})

	prereqInconsistencies := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "prerequisite_inconsistencies_total",
		Help: "Prerequisite links referencing unknown courses, skipped during generation",
	})

	reportQueueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "report_queue_depth",
		Help: "Report jobs waiting in the queue buffer",
	})

	reportJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "report_jobs_total",
		Help: "Report job outcomes",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio,
		cacheHits, cacheMisses, dbQueryDuration, recommendationRuns, recommendationDuration,
		recommendationCandidates, prereqInconsistencies, reportQueueDepth, reportJobs, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:                 registry,
		handler:                  handler,
		requestDuration:          requestDuration,
		requestTotal:             requestTotal,
		cacheLatency:             cacheLatency,
		cacheWrite:               cacheWrite,
		cacheHitRatio:            cacheHitRatio,
		cacheHits:                cacheHits,
		cacheMisses:              cacheMisses,
		dbQueryDuration:          dbQueryDuration,
		recommendationRuns:       recommendationRuns,
		recommendationDuration:   recommendationDuration,
		recommendationCandidates: recommendationCandidates,
		prereqInconsistencies:    prereqInconsistencies,
		reportQueueDepth:         reportQueueDepth,
		reportJobs:               reportJobs,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
	atomic.AddUint64(&m.dbQueryCount, 1)
	atomic.AddUint64(&m.dbQueryDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveRecommendationRun records one generation run and its candidate count.
func (m *MetricsService) ObserveRecommendationRun(candidates int, duration time.Duration) {
	if m == nil {
		return
	}
	m.recommendationRuns.Inc()
	m.recommendationDuration.Observe(duration.Seconds())
	m.recommendationCandidates.Observe(float64(candidates))
	atomic.AddUint64(&m.recommendationRunCount, 1)
	atomic.AddUint64(&m.recommendationCandidateNr, uint64(candidates))
}

// RecordPrerequisiteInconsistency counts a skipped prerequisite link that
// referenced an unknown course.
func (m *MetricsService) RecordPrerequisiteInconsistency() {
	if m == nil {
		return
	}
	m.prereqInconsistencies.Inc()
	atomic.AddUint64(&m.inconsistencyCount, 1)
}

// SetReportQueueDepth records how many report jobs sit in the queue buffer.
func (m *MetricsService) SetReportQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.reportQueueDepth.Set(float64(depth))
	atomic.StoreInt64(&m.reportQueueDepthValue, int64(depth))
}

// RecordReportJob counts one report job outcome (finished, failed, retried).
func (m *MetricsService) RecordReportJob(outcome string) {
	if m == nil {
		return
	}
	m.reportJobs.WithLabelValues(outcome).Inc()
}

// Snapshot returns aggregated metrics suitable for dashboard endpoints.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	dbCount := atomic.LoadUint64(&m.dbQueryCount)
	dbDuration := atomic.LoadUint64(&m.dbQueryDurationTotal)
	runs := atomic.LoadUint64(&m.recommendationRunCount)
	candidates := atomic.LoadUint64(&m.recommendationCandidateNr)
	inconsistencies := atomic.LoadUint64(&m.inconsistencyCount)

	var cacheRatio float64
	totalLookups := hits + misses
	if totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgDBMs float64
	if dbCount > 0 {
		avgDBMs = float64(dbDuration) / float64(dbCount) / float64(time.Millisecond)
	}

	var avgCandidates float64
	if runs > 0 {
		avgCandidates = float64(candidates) / float64(runs)
	}

	return models.SystemMetrics{
		CacheHitRatio:               cacheRatio,
		CacheHits:                   hits,
		CacheMisses:                 misses,
		RequestsTotal:               requests,
		AverageRequestDurationMs:    avgRequestMs,
		DBQueryCount:                dbCount,
		AverageDBQueryDurationMs:    avgDBMs,
		RecommendationRuns:          runs,
		AverageCandidatesPerRun:     avgCandidates,
		PrerequisiteInconsistencies: inconsistencies,
		ReportQueueDepth:            int(atomic.LoadInt64(&m.reportQueueDepthValue)),
		Goroutines:                  runtime.NumGoroutine(),
		GeneratedAt:                 time.Now().UTC(),
	}
}
