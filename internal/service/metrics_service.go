package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/timetable-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	proposals       *prometheus.CounterVec
	lockWait        prometheus.Histogram
	storeDuration   *prometheus.HistogramVec
	alerts          *prometheus.CounterVec

	requestCount         uint64
	requestDurationTotal uint64
	alertsDelivered      uint64
	alertsFailed         uint64

	mu            sync.Mutex
	proposalCount map[string]uint64
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

	proposals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_proposals_total",
		Help: "Timetable proposals by outcome",
	}, []string{"outcome"})

	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "timetable_lock_wait_seconds",
		Help:    "Time spent waiting for slot locks",
		Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
	})

	storeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timetable_store_duration_seconds",
		Help:    "Duration of timetable store calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	alerts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_alerts_total",
		Help: "Class alerts by delivery result",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, proposals, lockWait, storeDuration, alerts, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		proposals:       proposals,
		lockWait:        lockWait,
		storeDuration:   storeDuration,
		alerts:          alerts,
		proposalCount:   make(map[string]uint64),
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

// RecordProposal counts a proposal outcome such as "accepted" or an error code.
func (m *MetricsService) RecordProposal(outcome string) {
	if m == nil {
		return
	}
	m.proposals.WithLabelValues(outcome).Inc()
	m.mu.Lock()
	m.proposalCount[outcome]++
	m.mu.Unlock()
}

// ObserveLockWait records how long a proposal waited for its slot locks.
func (m *MetricsService) ObserveLockWait(duration time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(duration.Seconds())
}

// ObserveStoreCall records store call timing.
func (m *MetricsService) ObserveStoreCall(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.storeDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordAlert counts one alert delivery attempt outcome.
func (m *MetricsService) RecordAlert(delivered bool) {
	if m == nil {
		return
	}
	if delivered {
		m.alerts.WithLabelValues("delivered").Inc()
		atomic.AddUint64(&m.alertsDelivered, 1)
		return
	}
	m.alerts.WithLabelValues("failed").Inc()
	atomic.AddUint64(&m.alertsFailed, 1)
}

// Snapshot returns aggregated metrics suitable for the summary endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	m.mu.Lock()
	proposals := make(map[string]uint64, len(m.proposalCount))
	for k, v := range m.proposalCount {
		proposals[k] = v
	}
	m.mu.Unlock()

	return models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		Proposals:                proposals,
		AlertsDelivered:          atomic.LoadUint64(&m.alertsDelivered),
		AlertsFailed:             atomic.LoadUint64(&m.alertsFailed),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
