package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the HTTP and domain collectors of the service.
type Metrics struct {
	Requests        *prometheus.CounterVec
	LatencyMS       *prometheus.HistogramVec
	OrdersPlaced    prometheus.Counter
	Payments        *prometheus.CounterVec
	OutboxPublished *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics registers all collectors on reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jumia",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "jumia",
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jumia",
			Name:      "orders_placed_total",
			Help:      "Orders created from carts.",
		}),
		Payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jumia",
			Name:      "payments_total",
			Help:      "Payment provider operations by outcome.",
		}, []string{"operation", "result"}),
		OutboxPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jumia",
			Name:      "outbox_published_total",
			Help:      "Outbox events handed to the broker.",
		}, []string{"result"}),
		gatherer: reg,
	}
	reg.MustRegister(m.Requests, m.LatencyMS, m.OrdersPlaced, m.Payments, m.OutboxPublished)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObservePayment counts one provider operation; a nil receiver is a no-op.
func (m *Metrics) ObservePayment(operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Payments.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) ObserveOrderPlaced() {
	if m == nil {
		return
	}
	m.OrdersPlaced.Inc()
}

func (m *Metrics) ObserveOutbox(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.OutboxPublished.WithLabelValues(result).Inc()
}
