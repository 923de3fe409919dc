package helpers

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/weatherbot/core/logger"
	"github.com/m3rciful/weatherbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

// Enqueue runs the send on the dispatcher shard owning chatID, or inline when no
// dispatcher is wired or it has been closed. A closed dispatcher has drained its
// shards, so the inline send cannot overtake queued ones. A saturated shard is
// reported as sender.ErrQueueFull rather than sent out of order.
func Enqueue(ctx context.Context, chatID int64, action, endpoint string, run func() error) error {
	disp := currentDispatcher()
	if disp == nil {
		return run()
	}
	if err := disp.EnqueueChat(ctx, chatID, action, endpoint, run); err != nil {
		if errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				slog.Int64("chat_id", chatID),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

// BotSender is the subset of *tele.Bot used to push messages outside an update context.
type BotSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// SendTo delivers what to chatID through the bot API.
func SendTo(ctx context.Context, api BotSender, chatID int64, what interface{}, opts ...interface{}) error {
	if api == nil {
		return errors.New("telegram: bot api not bound")
	}
	return Enqueue(ctx, chatID, "send.text", "sendMessage", func() error {
		_, err := api.Send(tele.ChatID(chatID), what, opts...)
		return err
	})
}

// SendText sends raw text (no parse mode) to the current recipient.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	return Enqueue(BuildContext(c), ChatID(c), "send.text", "sendMessage", func() error {
		if len(opts) > 0 && opts[0] != nil {
			return c.Send(text, opts[0])
		}
		return c.Send(text)
	})
}
