package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics of the attendance service.
type Metrics struct {
	// Registry is the private registry that owns these metrics, exposed so
	// the /metrics endpoint can serve it. A private registry avoids
	// "duplicate collector" panics when NewMetrics runs more than once in
	// tests.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	ticketsCreated  prometheus.Counter
	claimsTotal     *prometheus.CounterVec
	conflictsTotal  prometheus.Counter
	eventsPublished prometheus.Counter
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "attendance_request_duration_seconds",
				Help:    "Duration of HTTP requests by method.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attendance_requests_total",
				Help: "Total HTTP requests processed.",
			},
			[]string{"method", "status"},
		),
		ticketsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "attendance_tickets_created_total",
				Help: "Total tickets issued.",
			},
		),
		claimsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attendance_claims_total",
				Help: "Total claim attempts by outcome.",
			},
			[]string{"outcome"},
		),
		conflictsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "attendance_concurrency_conflicts_total",
				Help: "Total requests rejected after the transaction retry budget.",
			},
		),
		eventsPublished: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "attendance_events_published_total",
				Help: "Total outbox events broadcast to realtime subscribers.",
			},
		),
	}
}

func (m *Metrics) RecordRequest(method string, status int, d time.Duration) {
	m.requestDuration.WithLabelValues(method).Observe(d.Seconds())
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

func (m *Metrics) IncrTicketCreated() {
	m.ticketsCreated.Inc()
}

// IncrClaim records a claim attempt. Outcome is "claimed" or "empty".
func (m *Metrics) IncrClaim(outcome string) {
	m.claimsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrConflict() {
	m.conflictsTotal.Inc()
}

func (m *Metrics) IncrEventPublished() {
	m.eventsPublished.Inc()
}
