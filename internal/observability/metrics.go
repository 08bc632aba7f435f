// Package observability holds the Prometheus metrics exported by the
// forecast service.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pfmforecast"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// bulletin ingest loop and the REST server.
type Metrics struct {
	registry *prometheus.Registry

	// Ingest metrics.
	BulletinsFetched *prometheus.CounterVec   // labels: office, outcome={success,error}
	FetchDuration    *prometheus.HistogramVec // labels: office
	RecordsStored    *prometheus.CounterVec   // labels: office, location
	ParseDiagnostics *prometheus.CounterVec   // labels: office, location
	LocationsMissing *prometheus.CounterVec   // labels: office, location
	RecordsPruned    prometheus.Counter
	LastRefresh      *prometheus.GaugeVec // labels: office

	// HTTP metrics.
	HTTPRequests *prometheus.CounterVec   // labels: route, status
	HTTPDuration *prometheus.HistogramVec // labels: route
}

// NewMetrics creates all metrics and registers them, with the Go runtime
// and process collectors, on a registry of their own.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		BulletinsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulletins_fetched_total",
			Help:      "PFM bulletin fetches by office and outcome.",
		}, []string{"office", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bulletin_fetch_duration_seconds",
			Help:      "Time taken to download a bulletin.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"office"}),
		RecordsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_stored_total",
			Help:      "Forecast records written to storage.",
		}, []string{"office", "location"}),
		ParseDiagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_diagnostics_total",
			Help:      "Non-fatal problems reported while parsing bulletins.",
		}, []string{"office", "location"}),
		LocationsMissing: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locations_missing_total",
			Help:      "Configured locations absent from a fetched bulletin.",
		}, []string{"office", "location"}),
		RecordsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_pruned_total",
			Help:      "Forecast records removed by retention.",
		}),
		LastRefresh: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_refresh_timestamp_seconds",
			Help:      "Unix time of the last successful refresh.",
		}, []string{"office"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.BulletinsFetched,
		m.FetchDuration,
		m.RecordsStored,
		m.ParseDiagnostics,
		m.LocationsMissing,
		m.RecordsPruned,
		m.LastRefresh,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// Registry returns the registry the metrics live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
