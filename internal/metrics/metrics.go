// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Appointment sources.
const (
	SourceAPI     = "api"
	SourceWebhook = "webhook"
)

// Metrics is a private registry plus the collectors the server updates.
type Metrics struct {
	registry *prometheus.Registry

	Requests            *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	AppointmentsCreated *prometheus.CounterVec
	WebhookEvents       *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.Requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carenet",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "code"})
	m.RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "carenet",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
	m.AppointmentsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carenet",
		Name:      "appointments_created_total",
		Help:      "Appointments created by source",
	}, []string{"source"})
	m.WebhookEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carenet",
		Name:      "webhook_events_total",
		Help:      "Voice-agent webhook calls by outcome",
	}, []string{"status"})

	m.registry.MustRegister(
		m.Requests, m.RequestDuration, m.AppointmentsCreated, m.WebhookEvents,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
