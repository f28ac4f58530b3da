package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the attendance
// core: HTTP latency, check-in/check-out latency, event publication and
// roster cache behaviour.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	transitionDuration *prometheus.HistogramVec
	staleConflicts     prometheus.Counter

	eventsPublished *prometheus.CounterVec
	eventsFailed    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
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

	transitionDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "attendance_transition_duration_seconds",
		Help:    "Latency of attendance state transitions end to end",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	staleConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_stale_conflicts_total",
		Help: "Optimistic lock conflicts surfaced to callers",
	})

	eventsPublished := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "domain_events_published_total",
		Help: "Domain events handed to the publisher",
	}, []string{"kind"})

	eventsFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "domain_events_publish_failures_total",
		Help: "Domain event publish attempts that returned an error",
	}, []string{"kind"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roster_cache_hits_total",
		Help: "Roster cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roster_cache_misses_total",
		Help: "Roster cache misses",
	})

	registry.MustRegister(requestDuration, requestTotal, transitionDuration, staleConflicts,
		eventsPublished, eventsFailed, cacheHits, cacheMisses)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		transitionDuration: transitionDuration,
		staleConflicts:     staleConflicts,
		eventsPublished:    eventsPublished,
		eventsFailed:       eventsFailed,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records a completed HTTP request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, strconv.Itoa(status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// ObserveTransition records the latency of an attendance operation.
func (s *MetricsService) ObserveTransition(operation string, duration time.Duration) {
	if s == nil {
		return
	}
	s.transitionDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordStaleConflict counts an optimistic lock rejection.
func (s *MetricsService) RecordStaleConflict() {
	if s == nil {
		return
	}
	s.staleConflicts.Inc()
}

// RecordEventPublished counts a dispatched event.
func (s *MetricsService) RecordEventPublished(kind string) {
	if s == nil {
		return
	}
	s.eventsPublished.WithLabelValues(kind).Inc()
}

// RecordEventFailure counts a failed publish attempt.
func (s *MetricsService) RecordEventFailure(kind string) {
	if s == nil {
		return
	}
	s.eventsFailed.WithLabelValues(kind).Inc()
}

// RecordCacheLookup counts a roster cache lookup outcome.
func (s *MetricsService) RecordCacheLookup(hit bool) {
	if s == nil {
		return
	}
	if hit {
		s.cacheHits.Inc()
		return
	}
	s.cacheMisses.Inc()
}
