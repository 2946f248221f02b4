package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

/* Metrics holds the gateway's Prometheus instruments. Everything hangs
 * off one registry so the /metrics endpoint and the tests see the same
 * instruments.
 */
type Metrics struct {
	registry *prometheus.Registry

	// CommandsTotal counts handled commands by command name and error code
	// ("ok" for successes).
	CommandsTotal *prometheus.CounterVec

	// RequestsRejectedTotal counts requests stopped by the middleware
	// pipeline, labeled by stage (auth, rate_limit, https, body_limit).
	RequestsRejectedTotal *prometheus.CounterVec

	// DeliveriesTotal counts delivery attempt outcomes
	// (delivered, retried, abandoned).
	DeliveriesTotal *prometheus.CounterVec

	// DeliveryDuration observes end-to-end delivery attempt latency.
	DeliveryDuration prometheus.Histogram
}

// New creates the instrument set on a fresh registry
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_commands_total",
			Help: "Commands handled, by command name and result code.",
		}, []string{"command", "code"}),
		RequestsRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_rejected_total",
			Help: "Requests rejected by the middleware pipeline, by stage.",
		}, []string{"stage"}),
		DeliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_deliveries_total",
			Help: "Webhook delivery attempts, by outcome.",
		}, []string{"outcome"}),
		DeliveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gateway_delivery_duration_seconds",
			Help:    "Latency of webhook delivery attempts.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		m.CommandsTotal,
		m.RequestsRejectedTotal,
		m.DeliveriesTotal,
		m.DeliveryDuration,
	)

	return m
}

// Register adds an extra collector, such as the queue depth collector
func (m *Metrics) Register(c prometheus.Collector) error {
	return m.registry.Register(c)
}

// Handler serves the registry in Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
