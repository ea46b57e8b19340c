package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	requests   *prometheus.CounterVec
	runs       *prometheus.CounterVec
	replicates prometheus.Counter
	degenerate prometheus.Counter
	duration   *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "abacus_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "abacus_simulation_runs_total",
			Help: "Monte Carlo runs by kind.",
		}, []string{"kind"}),
		replicates: f.NewCounter(prometheus.CounterOpts{
			Name: "abacus_simulation_replicates_total",
			Help: "Replicates simulated across all runs.",
		}),
		degenerate: f.NewCounter(prometheus.CounterOpts{
			Name: "abacus_degenerate_replicates_total",
			Help: "Replicates whose statistic was replaced by a documented convention.",
		}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "abacus_simulation_duration_seconds",
			Help:    "Wall time of Monte Carlo runs.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"kind"}),
	}
}
