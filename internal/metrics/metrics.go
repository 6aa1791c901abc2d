package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketplace"

// Metrics holds the checkout pipeline collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	checkoutAttempts    *prometheus.CounterVec
	reservationReleases *prometheus.CounterVec
	webhookEvents       *prometheus.CounterVec
	gatewayDuration     *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		checkoutAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "checkout", Name: "attempts_total",
			Help: "Checkout attempts by path and outcome.",
		}, []string{"path", "outcome"}),
		reservationReleases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "inventory", Name: "reservation_releases_total",
			Help: "Reservation holds released, by reason.",
		}, []string{"reason"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "payment", Name: "webhook_events_total",
			Help: "Gateway webhook events by event type and outcome.",
		}, []string{"event", "outcome"}),
		gatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "payment", Name: "gateway_request_duration_seconds",
			Help:    "Latency of payment gateway calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
	reg.MustRegister(
		m.checkoutAttempts,
		m.reservationReleases,
		m.webhookEvents,
		m.gatewayDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) CheckoutAttempt(path, outcome string) {
	if m == nil {
		return
	}
	m.checkoutAttempts.WithLabelValues(path, outcome).Inc()
}

func (m *Metrics) ReservationReleased(reason string) {
	if m == nil {
		return
	}
	m.reservationReleases.WithLabelValues(reason).Inc()
}

func (m *Metrics) WebhookEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) ObserveGateway(op string, seconds float64) {
	if m == nil {
		return
	}
	m.gatewayDuration.WithLabelValues(op).Observe(seconds)
}
