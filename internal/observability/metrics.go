package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	errors           *prometheus.CounterVec
	chatIntents      *prometheus.CounterVec
	recordsCreated   *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	scheduledDropped prometheus.Counter
}

// NewMetrics registers every collector.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "servicedesk_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "servicedesk_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "servicedesk_http_errors_total",
			Help: "HTTP errors by route, method and error code.",
		}, []string{"path", "method", "code"}),
		chatIntents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "servicedesk_chat_intents_total",
			Help: "Classified chat messages by intent and sensitivity.",
		}, []string{"intent", "sensitive"}),
		recordsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "servicedesk_records_created_total",
			Help: "Tickets and incidents created, by kind and category.",
		}, []string{"kind", "category"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "servicedesk_notifications_total",
			Help: "Notifications appended, by type.",
		}, []string{"type"}),
		scheduledDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "servicedesk_scheduled_tasks_revoked_total",
			Help: "Scheduled tasks revoked by session teardown.",
		}),
	}
	m.registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.errors,
		m.chatIntents,
		m.recordsCreated,
		m.notifications,
		m.scheduledDropped,
	)
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordIntent counts one classified chat message.
func (m *Metrics) RecordIntent(intent string, sensitive bool) {
	if m == nil {
		return
	}
	m.chatIntents.WithLabelValues(intent, strconv.FormatBool(sensitive)).Inc()
}

// RecordCreated counts a created ticket or incident.
func (m *Metrics) RecordCreated(kind, category string) {
	if m == nil {
		return
	}
	m.recordsCreated.WithLabelValues(kind, category).Inc()
}

// RecordNotification counts an appended notification.
func (m *Metrics) RecordNotification(notificationType string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(notificationType).Inc()
}

// RecordRevoked counts scheduled tasks cancelled on teardown.
func (m *Metrics) RecordRevoked(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.scheduledDropped.Add(float64(n))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
