package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/m3rciful/weatherbot/core/logger"
	tghelpers "github.com/m3rciful/weatherbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// ErrPanic wraps a value recovered from a handler panic.
var ErrPanic = errors.New("telegram: handler panic")

var panicsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "weatherbot",
	Subsystem: "tg",
	Name:      "handler_panics_total",
	Help:      "Handler panics turned into errors.",
})

// RecoverMiddleware turns a handler panic into an ErrPanic error so the update
// is reported through the bot's OnError hook and polling keeps running.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			panicsTotal.Inc()
			logger.Error(tghelpers.BuildContext(c), "tg", "handler.panic",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}()
		return next(c)
	}
}
