package middleware

import (
	"github.com/m3rciful/weatherbot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// SerializeChat runs handlers for the same chat one at a time. Updates without a
// chat pass straight through.
func SerializeChat(locker *state.ChatLocker) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chat := c.Chat()
			if locker == nil || chat == nil {
				return next(c)
			}
			unlock := locker.Lock(chat.ID)
			defer unlock()
			return next(c)
		}
	}
}
