// Package metrics exposes Prometheus counters for the ingestion
// pipeline. A Metrics value is scoped to one process; counters carry the
// provider as a label so concurrent pipelines share one registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Record outcome label values.
const (
	OutcomeSeen     = "seen"
	OutcomeInserted = "inserted"
	OutcomeMerged   = "merged"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	// Requests counts provider page fetches by outcome (ok, error).
	Requests *prometheus.CounterVec

	// Records counts raw records by terminal outcome.
	Records *prometheus.CounterVec

	// Cells counts swept grid cells by result (ok, failed).
	Cells *prometheus.CounterVec

	// Events counts processed event records by outcome.
	Events *prometheus.CounterVec
}

// New creates a Metrics with its own registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.Requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discover",
		Name:      "provider_requests_total",
		Help:      "Provider page fetches by outcome.",
	}, []string{"provider", "outcome"})

	m.Records = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discover",
		Name:      "venue_records_total",
		Help:      "Raw venue records by terminal outcome.",
	}, []string{"provider", "outcome"})

	m.Cells = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discover",
		Name:      "sweep_cells_total",
		Help:      "Swept grid cells by result.",
	}, []string{"provider", "result"})

	m.Events = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discover",
		Name:      "event_records_total",
		Help:      "Raw event records by terminal outcome.",
	}, []string{"provider", "outcome"})

	m.registry.MustRegister(m.Requests, m.Records, m.Cells, m.Events)
	return m
}

// Handler returns the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
