package bot

import (
	"context"
	"sync"

	tghelpers "github.com/m3rciful/weatherbot/core/telegram/helpers"
	"github.com/m3rciful/weatherbot/core/telegram/keyboard"
	"github.com/m3rciful/weatherbot/internal/subscription"
)

// Messenger sends through the bot API once bound. Sends go through the shared
// sender dispatcher, so messages to one chat keep their order.
type Messenger struct {
	mu  sync.RWMutex
	api tghelpers.BotSender
}

var _ subscription.Messenger = (*Messenger)(nil)

// NewMessenger returns an unbound Messenger.
func NewMessenger() *Messenger { return &Messenger{} }

// Bind attaches the bot API. It is called from the runtime start hook.
func (m *Messenger) Bind(api tghelpers.BotSender) {
	m.mu.Lock()
	m.api = api
	m.mu.Unlock()
}

func (m *Messenger) sender() tghelpers.BotSender {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.api
}

// SendText also hides any location keyboard left from an earlier prompt.
func (m *Messenger) SendText(ctx context.Context, chatID int64, text string) error {
	return tghelpers.SendTo(ctx, m.sender(), chatID, text, keyboard.RemoveKeyboard())
}

func (m *Messenger) SendLocationRequest(ctx context.Context, chatID int64, text string) error {
	return tghelpers.SendTo(ctx, m.sender(), chatID, text, keyboard.LocationRequest(keyboard.DefaultLocationButtonText))
}
