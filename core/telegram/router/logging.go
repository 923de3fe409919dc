package router

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/m3rciful/weatherbot/core/logger"
	tghelpers "github.com/m3rciful/weatherbot/core/telegram/helpers"
	"github.com/m3rciful/weatherbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

var handlerDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "weatherbot",
		Subsystem: "tg",
		Name:      "handler_duration_seconds",
		Help:      "Time spent in a routed handler by handler name and outcome.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
	},
	[]string{"handler", "outcome"},
)

// Handler outcomes recorded in the summary log and metrics.
const (
	outcomeOK   = "ok"
	outcomeFail = "fail"
	outcomeSkip = "skip"
)

// summarize runs fn under the handler name and records one handler.handled event.
func summarize(c tele.Context, handler string, start time.Time, fn func() error) error {
	tghelpers.WithHandler(c, handler)
	err := fn()
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeFail
	}
	record(c, handler, outcome, start, err)
	return err
}

func record(c tele.Context, handler, outcome string, start time.Time, err error) {
	ctx := tghelpers.WithHandler(c, handler)
	took := time.Since(start)
	handlerDuration.WithLabelValues(handler, outcome).Observe(took.Seconds())

	replies, kb := middleware.GetCounters(c)
	attrs := []slog.Attr{
		slog.String("handler", handler),
		slog.String("outcome", outcome),
		slog.Int("replies", replies),
		slog.Bool("kb", kb),
		slog.Duration("duration", logger.RoundMS(took)),
	}
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_kind", errorKind(err)),
		)
	}
	logger.LogEvent(ctx, logger.Component("tg"), level, "handler.handled", attrs...)
}

// normalizeHandlerName turns a command endpoint into a metric-safe label.
func normalizeHandlerName(name string) string {
	name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
	if name == "" {
		return "unknown"
	}
	return strings.ReplaceAll(name, " ", "_")
}

// errorKind buckets handler errors for logs. Bot API errors carry their status code.
func errorKind(err error) string {
	var (
		apiErr   *tele.Error
		floodErr tele.FloodError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &floodErr):
		return "flood"
	case errors.As(err, &apiErr):
		return "api_" + strconv.Itoa(apiErr.Code)
	case errors.Is(err, middleware.ErrPanic):
		return "panic"
	default:
		return "internal"
	}
}
