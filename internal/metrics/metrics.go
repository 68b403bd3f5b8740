// Package metrics defines the Prometheus collectors for the gateway and
// exposes the scrape handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's Prometheus collectors.
type Metrics struct {
	WebhookRequestsTotal *prometheus.CounterVec
	ProcessingTotal      *prometheus.CounterVec
	BackendCallDuration  *prometheus.HistogramVec
	QueueDepth           prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers the gateway metrics on a private registry.
func New() *Metrics {
	m := &Metrics{
		WebhookRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_requests_total",
				Help: "Webhook requests by admission outcome (admitted, forbidden, rate_limited, unauthorized, bad_request, queue_full).",
			},
			[]string{"outcome"},
		),
		ProcessingTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "update_processing_total",
				Help: "Processed updates by input type and result status.",
			},
			[]string{"input_type", "status"},
		),
		BackendCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backend_call_duration_seconds",
				Help:    "Backend call latency in seconds by audience.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"audience"},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dispatch_queue_depth",
				Help: "Updates waiting in the dispatch queue.",
			},
		),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(
		m.WebhookRequestsTotal,
		m.ProcessingTotal,
		m.BackendCallDuration,
		m.QueueDepth,
	)
	return m
}

// Handler returns the Prometheus exposition handler for /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
