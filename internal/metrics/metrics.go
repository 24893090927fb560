package metrics

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the gateway's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	eligibility      *prometheus.CounterVec
	comparison       *prometheus.CounterVec
	submissions      *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	sessionsCreated  prometheus.Counter
	sessionsExpired  prometheus.Counter
}

// New registers all collectors on a private registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	upstreamDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upstream_request_duration_seconds",
		Help:    "Duration of calls to the catalog and application backends",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})

	eligibility := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eligibility_evaluations_total",
		Help: "Universities evaluated against a student profile",
	}, []string{"eligible"})

	comparison := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comparison_toggles_total",
		Help: "Comparison selection toggles by outcome",
	}, []string{"outcome"})

	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "application_submissions_total",
		Help: "Application submissions by outcome",
	}, []string{"outcome"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_published_total",
		Help: "Notifications published by kind",
	}, []string{"kind"})

	sessionsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sessions_created_total",
		Help: "Sessions created",
	})

	sessionsExpired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sessions_expired_total",
		Help: "Sessions removed by the cleanup worker",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		requestDuration, requestTotal, upstreamDuration,
		eligibility, comparison, submissions, notifications,
		sessionsCreated, sessionsExpired, goroutines,
	)

	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		upstreamDuration: upstreamDuration,
		eligibility:      eligibility,
		comparison:       comparison,
		submissions:      submissions,
		notifications:    notifications,
		sessionsCreated:  sessionsCreated,
		sessionsExpired:  sessionsExpired,
	}
}

// Handler exposes the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records one served request
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, route, code).Observe(d.Seconds())
	m.requestTotal.WithLabelValues(method, route, code).Inc()
}

// ObserveUpstream matches the client observer signature; status 0 means a transport failure
func (m *Metrics) ObserveUpstream(op string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(op, strconv.Itoa(status)).Observe(d.Seconds())
}

// CountEligibility records the eligible and ineligible counts of one listing pass
func (m *Metrics) CountEligibility(eligible, ineligible int) {
	if m == nil {
		return
	}
	m.eligibility.WithLabelValues("true").Add(float64(eligible))
	m.eligibility.WithLabelValues("false").Add(float64(ineligible))
}

// CountComparison records a toggle outcome
func (m *Metrics) CountComparison(outcome string) {
	if m == nil {
		return
	}
	m.comparison.WithLabelValues(outcome).Inc()
}

// CountSubmission records a submission outcome
func (m *Metrics) CountSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

// CountNotification records a published notification
func (m *Metrics) CountNotification(kind string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind).Inc()
}

// SessionCreated increments the created sessions counter
func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

// SessionExpired increments the expired sessions counter
func (m *Metrics) SessionExpired() {
	if m == nil {
		return
	}
	m.sessionsExpired.Inc()
}
