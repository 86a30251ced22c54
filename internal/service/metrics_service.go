package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for access-control counters.
const (
	OutcomeGranted     = "granted"
	OutcomeAlreadyOK   = "already_verified"
	OutcomeRejected    = "rejected"
	OutcomeUnavailable = "gateway_unavailable"
	OutcomeInvalid     = "invalid"
	OutcomeError       = "error"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry             *prometheus.Registry
	handler              http.Handler
	requestDuration      *prometheus.HistogramVec
	requestTotal         *prometheus.CounterVec
	cacheHits            prometheus.Counter
	cacheMisses          prometheus.Counter
	cacheWrite           prometheus.Observer
	paymentVerifications *prometheus.CounterVec
	gatewayLatency       prometheus.Observer
	referralRedemptions  *prometheus.CounterVec
	applicationsCreated  prometheus.Counter
	submissions          prometheus.Counter
	reviewChanges        *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors on a private registry.
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

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	paymentVerifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_verifications_total",
		Help: "Payment verifications by outcome",
	}, []string{"outcome"})

	gatewayLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_gateway_request_seconds",
		Help:    "Latency of payment gateway verify calls",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	referralRedemptions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "referral_redemptions_total",
		Help: "Referral code redemptions by outcome",
	}, []string{"outcome"})

	applicationsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "applications_created_total",
		Help: "Applications created with a fresh number",
	})

	submissions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "applications_submitted_total",
		Help: "Applications submitted for the first time",
	})

	reviewChanges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "application_review_changes_total",
		Help: "Review status changes by target status",
	}, []string{"status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses, cacheWrite,
		paymentVerifications, gatewayLatency, referralRedemptions, applicationsCreated, submissions, reviewChanges, goroutines)

	return &MetricsService{
		registry:             registry,
		handler:              promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:      requestDuration,
		requestTotal:         requestTotal,
		cacheHits:            cacheHits,
		cacheMisses:          cacheMisses,
		cacheWrite:           cacheWrite,
		paymentVerifications: paymentVerifications,
		gatewayLatency:       gatewayLatency,
		referralRedemptions:  referralRedemptions,
		applicationsCreated:  applicationsCreated,
		submissions:          submissions,
		reviewChanges:        reviewChanges,
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

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
		return
	}
	m.cacheMisses.Inc()
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordPaymentVerification counts one verify call by outcome.
func (m *MetricsService) RecordPaymentVerification(outcome string) {
	if m == nil {
		return
	}
	m.paymentVerifications.WithLabelValues(outcome).Inc()
}

// ObserveGatewayCall records the latency of one gateway round trip.
func (m *MetricsService) ObserveGatewayCall(duration time.Duration) {
	if m == nil {
		return
	}
	m.gatewayLatency.Observe(duration.Seconds())
}

// RecordReferralRedemption counts one redemption attempt by outcome.
func (m *MetricsService) RecordReferralRedemption(outcome string) {
	if m == nil {
		return
	}
	m.referralRedemptions.WithLabelValues(outcome).Inc()
}

// RecordApplicationCreated counts a newly numbered application.
func (m *MetricsService) RecordApplicationCreated() {
	if m == nil {
		return
	}
	m.applicationsCreated.Inc()
}

// RecordSubmission counts a first-time submission.
func (m *MetricsService) RecordSubmission() {
	if m == nil {
		return
	}
	m.submissions.Inc()
}

// RecordReviewChange counts review status changes.
func (m *MetricsService) RecordReviewChange(status string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reviewChanges.WithLabelValues(status).Add(float64(n))
}
