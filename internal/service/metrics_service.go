package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	dbQueryDuration *prometheus.HistogramVec

	pointsAwarded     *prometheus.CounterVec
	levelUps          prometheus.Counter
	badgesAwarded     prometheus.Counter
	recalcJobs        *prometheus.CounterVec
	rankingRecomputes *prometheus.CounterVec
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

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	pointsAwarded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "points_awarded_total",
		Help: "Total points awarded, by category",
	}, []string{"category"})

	levelUps := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "level_ups_total",
		Help: "Total student level-ups",
	})

	badgesAwarded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "badges_awarded_total",
		Help: "Total badge awards, repeats included",
	})

	recalcJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recalc_jobs_total",
		Help: "Total enrollment recalculations, by outcome",
	}, []string{"outcome"})

	rankingRecomputes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ranking_recomputes_total",
		Help: "Total ranking recomputes, by scope",
	}, []string{"scope"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, dbQueryDuration,
		pointsAwarded, levelUps, badgesAwarded, recalcJobs, rankingRecomputes, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		dbQueryDuration:   dbQueryDuration,
		pointsAwarded:     pointsAwarded,
		levelUps:          levelUps,
		badgesAwarded:     badgesAwarded,
		recalcJobs:        recalcJobs,
		rankingRecomputes: rankingRecomputes,
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// CountPointsAwarded tallies awarded points by category.
func (m *MetricsService) CountPointsAwarded(category string, amount int) {
	if m == nil {
		return
	}
	m.pointsAwarded.WithLabelValues(category).Add(float64(amount))
}

// CountLevelUp tallies a student level-up.
func (m *MetricsService) CountLevelUp() {
	if m == nil {
		return
	}
	m.levelUps.Inc()
}

// CountBadgeAwarded tallies a badge award.
func (m *MetricsService) CountBadgeAwarded() {
	if m == nil {
		return
	}
	m.badgesAwarded.Inc()
}

// CountRecalc tallies one enrollment recalculation outcome ("ok" or "error").
func (m *MetricsService) CountRecalc(outcome string) {
	if m == nil {
		return
	}
	m.recalcJobs.WithLabelValues(outcome).Inc()
}

// CountRankingRecompute tallies one ranking recompute per scope.
func (m *MetricsService) CountRankingRecompute(scope string) {
	if m == nil {
		return
	}
	m.rankingRecomputes.WithLabelValues(scope).Inc()
}
