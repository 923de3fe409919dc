package telegram

import (
	"github.com/m3rciful/weatherbot/core/telegram/middleware"
	"github.com/m3rciful/weatherbot/core/telegram/state"
)

// DefaultMiddlewares builds the shared middleware chain for bots. A non-nil
// locker serializes handling per chat.
func DefaultMiddlewares(locker *state.ChatLocker) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logger", Use: middleware.LoggerMiddleware},
		{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	}
	if locker != nil {
		mws = append(mws, Middleware{Name: "serialize", Use: middleware.SerializeChat(locker)})
	}
	return mws
}
