// Package metrics provides Prometheus metrics for the MediHope portal.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
	BackendRequests     *prometheus.CounterVec
	BackendDuration     *prometheus.HistogramVec
	FilterResults       prometheus.Histogram
	Submissions         *prometheus.CounterVec
	OCRExtractions      *prometheus.CounterVec
	EventsPublished     *prometheus.CounterVec
	CircuitBreakerState *prometheus.GaugeVec
}

// New creates all metrics and registers them on the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all metrics and registers them on reg
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medihope_portal_http_requests_total",
			Help: "Portal API requests by route, method and status code",
		}, []string{"route", "method", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medihope_portal_http_request_duration_seconds",
			Help:    "Portal API request duration by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		BackendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medihope_backend_requests_total",
			Help: "Backend API calls by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		BackendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medihope_backend_request_duration_seconds",
			Help:    "Backend API call duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"endpoint"}),
		FilterResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "medihope_medicine_filter_results",
			Help:    "Number of medicines left after filtering",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medihope_form_submissions_total",
			Help: "Donor and needy form submissions by kind and outcome",
		}, []string{"kind", "outcome"}),
		OCRExtractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medihope_aadhaar_ocr_total",
			Help: "Aadhaar OCR extractions by side and outcome",
		}, []string{"side", "outcome"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medihope_submission_events_total",
			Help: "Submission events published by outcome",
		}, []string{"outcome"}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.BackendRequests,
		m.BackendDuration,
		m.FilterResults,
		m.Submissions,
		m.OCRExtractions,
		m.EventsPublished,
		m.CircuitBreakerState,
	)

	return m
}

// ObserveHTTP records one portal API request
func (m *Metrics) ObserveHTTP(route, method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveBackend records one backend call
func (m *Metrics) ObserveBackend(endpoint, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.BackendRequests.WithLabelValues(endpoint, outcome).Inc()
	m.BackendDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// ObserveFilter records the size of a filtered medicine view
func (m *Metrics) ObserveFilter(n int) {
	if m == nil {
		return
	}
	m.FilterResults.Observe(float64(n))
}

// ObserveSubmission records a form submission
func (m *Metrics) ObserveSubmission(kind, outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(kind, outcome).Inc()
}

// ObserveOCR records an OCR extraction
func (m *Metrics) ObserveOCR(side, outcome string) {
	if m == nil {
		return
	}
	m.OCRExtractions.WithLabelValues(side, outcome).Inc()
}

// ObserveEvent records a submission event publish
func (m *Metrics) ObserveEvent(outcome string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(outcome).Inc()
}

// SetBreakerState records a circuit breaker transition
func (m *Metrics) SetBreakerState(name, state string) {
	if m == nil {
		return
	}
	v := 0.0
	switch state {
	case "open":
		v = 1
	case "half-open":
		v = 2
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(v)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
