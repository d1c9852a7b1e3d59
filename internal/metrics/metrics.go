package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors of the API. A nil *Metrics records nothing.
type Metrics struct {
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	usecaseRequests  *prometheus.CounterVec
	usecaseDuration  *prometheus.HistogramVec
	gatewayRequests  *prometheus.CounterVec
	webhookDelivered *prometheus.CounterVec
	eventsProjected  *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		usecaseRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usecase_requests_total",
			Help: "Use case executions by outcome.",
		}, []string{"use_case", "outcome"}),
		usecaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "usecase_duration_seconds",
			Help:    "Use case latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"use_case"}),
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Payment gateway invoice calls by outcome.",
		}, []string{"outcome"}),
		webhookDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Payment webhook deliveries by incoming status and outcome.",
		}, []string{"status", "outcome"}),
		eventsProjected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "events_projected_total",
			Help: "Domain events applied to the order status projection.",
		}, []string{"event_type", "outcome"}),
	}
	reg.MustRegister(
		m.httpRequests, m.httpDuration,
		m.usecaseRequests, m.usecaseDuration,
		m.gatewayRequests, m.webhookDelivered, m.eventsProjected,
	)
	return m
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, statusLabel(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) ObserveUseCase(name, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.usecaseRequests.WithLabelValues(name, outcome).Inc()
	m.usecaseDuration.WithLabelValues(name).Observe(d.Seconds())
}

func (m *Metrics) GatewayCall(outcome string) {
	if m == nil {
		return
	}
	m.gatewayRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) WebhookDelivery(status, outcome string) {
	if m == nil {
		return
	}
	m.webhookDelivered.WithLabelValues(status, outcome).Inc()
}

func (m *Metrics) EventProjected(eventType, outcome string) {
	if m == nil {
		return
	}
	m.eventsProjected.WithLabelValues(eventType, outcome).Inc()
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
