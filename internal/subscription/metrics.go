package subscription

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "weatherbot",
		Name:      "subscriptions_active",
		Help:      "Chat ids currently in the active subscription set.",
	})
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "weatherbot",
		Name:      "subscription_events_total",
		Help:      "Subscription events by type and outcome.",
	}, []string{"event", "outcome"})
)

func countEvent(event, outcome string) {
	eventsTotal.WithLabelValues(event, outcome).Inc()
}
