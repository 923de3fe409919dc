package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	tele "gopkg.in/telebot.v4"
)

var (
	updatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "weatherbot",
			Subsystem: "tg",
			Name:      "updates_total",
			Help:      "Inbound Telegram updates by kind and handler outcome.",
		},
		[]string{"kind", "status"},
	)

	updateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "weatherbot",
			Subsystem: "tg",
			Name:      "update_duration_seconds",
			Help:      "Time spent handling an inbound update.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)

	messagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "weatherbot",
			Subsystem: "tg",
			Name:      "replies_total",
			Help:      "Replies sent from within update handlers.",
		},
	)
)

// metricsContext wraps tele.Context to count sent messages and detect keyboard usage.
type metricsContext struct{ tele.Context }

func (m metricsContext) incMessages(hasKB bool) {
	// Update messages counter
	n := 0
	if v := m.Get("messages"); v != nil {
		if nv, ok := v.(int); ok {
			n = nv
		}
	}
	m.Set("messages", n+1)
	messagesSent.Inc()
	if hasKB {
		m.Set("kb", true)
	}
}

func hasKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// Send proxies tele.Context.Send while updating message counters.
func (m metricsContext) Send(what interface{}, opts ...interface{}) error {
	err := m.Context.Send(what, opts...)
	if err == nil {
		m.incMessages(hasKeyboard(opts))
	}
	return err
}

// Reply proxies tele.Context.Reply while updating message counters.
func (m metricsContext) Reply(what interface{}, opts ...interface{}) error {
	err := m.Context.Reply(what, opts...)
	if err == nil {
		m.incMessages(hasKeyboard(opts))
	}
	return err
}

// MessageMetricsMiddleware instruments context to track messages count and keyboard usage,
// and records per-kind update counters and latency.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		c.Set("messages", 0)
		c.Set("kb", false)

		kind := UpdateKind(c.Update())
		start := time.Now()
		err := next(metricsContext{Context: c})
		updateDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		status := "ok"
		if err != nil {
			status = "fail"
		}
		updatesTotal.WithLabelValues(kind, status).Inc()
		return err
	}
}

// GetCounters reads message count and keyboard presence flags from context.
func GetCounters(c tele.Context) (int, bool) {
	msgs := 0
	if v := c.Get("messages"); v != nil {
		if n, ok := v.(int); ok {
			msgs = n
		}
	}
	kb := false
	if v := c.Get("kb"); v != nil {
		if b, ok := v.(bool); ok {
			kb = b
		}
	}
	return msgs, kb
}
