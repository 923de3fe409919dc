package upstream

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "weatherbot",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Provider calls by outcome.",
		},
		[]string{"provider", "outcome"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "weatherbot",
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Provider call latency in seconds.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"provider"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "weatherbot",
			Subsystem: "upstream",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per provider: 0 closed, 1 half-open, 2 open.",
		},
		[]string{"provider"},
	)
)

func observe(provider, outcome string, took time.Duration) {
	requestsTotal.WithLabelValues(provider, outcome).Inc()
	requestDuration.WithLabelValues(provider).Observe(took.Seconds())
}
