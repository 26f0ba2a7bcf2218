// Package metrics holds the prometheus collectors of the relay.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hls_relay"

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Total HTTP requests by route and status code.",
	}, []string{"route", "status"})

	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_duration_seconds",
		Help:      "Time until the handler returned, in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"route"})

	UpstreamFetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_fetches_total",
		Help:      "Upstream fetches by kind and outcome.",
	}, []string{"kind", "outcome"})

	UpstreamInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "upstream_inflight",
		Help:      "Upstream fetches currently holding a worker slot.",
	})

	ManifestsRewrittenTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "manifests_rewritten_total",
		Help:      "Playlists rewritten by playlist kind.",
	}, []string{"kind"})

	VirtualPlaylistsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "virtual_playlists_total",
		Help:      "Synthesised playlists by variant.",
	}, []string{"variant"})

	InterceptedRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "intercepted_requests_total",
		Help:      "In-process intercepted requests by provider and session phase.",
	}, []string{"provider", "phase"})

	RangeSlicesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "range_slices_total",
		Help:      "Responses sliced locally because the origin ignored Range.",
	})
)

// Fetch outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeStatus   = "status"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
	OutcomeCanceled = "canceled"
)

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		RequestsTotal,
		RequestDuration,
		UpstreamFetchesTotal,
		UpstreamInflight,
		ManifestsRewrittenTotal,
		VirtualPlaylistsTotal,
		InterceptedRequestsTotal,
		RangeSlicesTotal,
	)
}

// Handler serves the collectors registered on gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
