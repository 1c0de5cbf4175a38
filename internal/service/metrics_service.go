package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Abdulhakimkamal/otpas-hu-api/internal/models"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/jobs"
)

const metricsNamespace = "otpas"

// MetricsService owns the Prometheus registry and keeps atomic totals for the summary endpoint.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheHitRatio   prometheus.Gauge
	cacheLookups    *prometheus.CounterVec
	dbQueryDuration *prometheus.HistogramVec
	submitted       *prometheus.CounterVec
	duplicates      *prometheus.CounterVec
	reportJobs      *prometheus.CounterVec
	inFlight        prometheus.Gauge

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	dbQueryCount         uint64
	dbQueryDurationTotal uint64
	submittedCount       uint64
	duplicateCount       uint64
	inFlightCount        int64
}

func NewMetricsService() *MetricsService {
	m := &MetricsService{
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "cache_read_seconds",
			Help:      "Latency of cache reads.",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "cache_write_seconds",
			Help:      "Latency of cache writes.",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "cache_hit_ratio",
			Help:      "Ratio of cache hits to lookups.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by result.",
		}, []string{"result"}),
		dbQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "db_query_duration_seconds",
			Help:      "Duration of database calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query"}),
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "evaluations_submitted_total",
			Help:      "Evaluation scores accepted, by component.",
		}, []string{"evaluation_type"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "evaluation_duplicates_suppressed_total",
			Help:      "Evaluation records dropped while grouping, by dedup pass.",
		}, []string{"pass"}),
		reportJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "report_jobs_total",
			Help:      "Report jobs reaching a terminal state.",
		}, []string{"status"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_in_flight",
			Help:      "Requests currently being served.",
		}),
	}

	m.registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.cacheLatency, m.cacheWrite, m.cacheHitRatio, m.cacheLookups,
		m.dbQueryDuration, m.submitted, m.duplicates, m.reportJobs, m.inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
	return m
}

// Handler exposes the registry over HTTP.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// WatchQueue exports a job queue's cumulative counters.
func (m *MetricsService) WatchQueue(name string, stats func() jobs.Stats) {
	if m == nil {
		return
	}
	counter := func(metric, help string, pick func(jobs.Stats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "queue",
			Name:        metric,
			Help:        help,
			ConstLabels: prometheus.Labels{"queue": name},
		}, func() float64 { return float64(pick(stats())) })
	}
	m.registry.MustRegister(
		counter("jobs_processed_total", "Handler calls, successful or not.", func(s jobs.Stats) uint64 { return s.Processed }),
		counter("jobs_failed_total", "Handler calls that returned an error or panicked.", func(s jobs.Stats) uint64 { return s.Failed }),
		counter("jobs_retried_total", "Failed jobs scheduled for another attempt.", func(s jobs.Stats) uint64 { return s.Retried }),
		counter("jobs_abandoned_total", "Jobs that ran out of retries.", func(s jobs.Stats) uint64 { return s.Abandoned }),
	)
}

// TrackInFlight adjusts the in-flight request gauge by delta.
func (m *MetricsService) TrackInFlight(delta int64) {
	if m == nil {
		return
	}
	m.inFlight.Add(float64(delta))
	atomic.AddInt64(&m.inFlightCount, delta)
}

func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, code).Observe(d.Seconds())
	m.requestTotal.WithLabelValues(method, path, code).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(d.Nanoseconds()))
}

func (m *MetricsService) RecordCacheOperation(hit bool, d time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(d.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	if total := hits + atomic.LoadUint64(&m.cacheMissCount); total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

func (m *MetricsService) ObserveCacheWrite(d time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(d.Seconds())
}

func (m *MetricsService) ObserveDBQuery(label string, d time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(d.Seconds())
	atomic.AddUint64(&m.dbQueryCount, 1)
	atomic.AddUint64(&m.dbQueryDurationTotal, uint64(d.Nanoseconds()))
}

func (m *MetricsService) EvaluationSubmitted(evaluationType string) {
	if m == nil {
		return
	}
	m.submitted.WithLabelValues(evaluationType).Inc()
	atomic.AddUint64(&m.submittedCount, 1)
}

// DuplicatesSuppressed records records dropped by the id and content dedup passes.
func (m *MetricsService) DuplicatesSuppressed(byID, byContent int) {
	if m == nil {
		return
	}
	if byID > 0 {
		m.duplicates.WithLabelValues("id").Add(float64(byID))
	}
	if byContent > 0 {
		m.duplicates.WithLabelValues("content").Add(float64(byContent))
	}
	atomic.AddUint64(&m.duplicateCount, uint64(byID+byContent))
}

func (m *MetricsService) ReportJobFinished(status models.ReportStatus) {
	if m == nil {
		return
	}
	m.reportJobs.WithLabelValues(string(status)).Inc()
}

// Snapshot summarises the atomic counters.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	out := models.SystemMetrics{Goroutines: runtime.NumGoroutine(), GeneratedAt: time.Now().UTC()}
	if m == nil {
		return out
	}
	out.HTTP = traffic(atomic.LoadUint64(&m.requestCount), atomic.LoadUint64(&m.requestDurationTotal))
	out.HTTP.InFlight = atomic.LoadInt64(&m.inFlightCount)
	out.Database = traffic(atomic.LoadUint64(&m.dbQueryCount), atomic.LoadUint64(&m.dbQueryDurationTotal))

	hits, misses := atomic.LoadUint64(&m.cacheHitCount), atomic.LoadUint64(&m.cacheMissCount)
	out.Cache = models.CacheStats{Hits: hits, Misses: misses}
	if hits+misses > 0 {
		out.Cache.HitRatio = float64(hits) / float64(hits+misses)
	}
	out.Evaluations = models.EvaluationStats{
		Submitted:            atomic.LoadUint64(&m.submittedCount),
		DuplicatesSuppressed: atomic.LoadUint64(&m.duplicateCount),
	}
	return out
}

func traffic(count, totalNanos uint64) models.TrafficStats {
	stats := models.TrafficStats{Count: count}
	if count > 0 {
		stats.MeanMs = float64(totalNanos) / float64(count) / float64(time.Millisecond)
	}
	return stats
}
