// Package bot binds the subscription service to Telegram commands and events.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tg "github.com/m3rciful/weatherbot/core/telegram"
	"github.com/m3rciful/weatherbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/weatherbot/core/telegram/helpers"
	"github.com/m3rciful/weatherbot/internal/credential"
	"github.com/m3rciful/weatherbot/internal/subscriber"
	"github.com/m3rciful/weatherbot/internal/subscription"

	tele "gopkg.in/telebot.v4"
)

// Admin replies.
const (
	MsgAdminOnly        = "This command is available to the administrator only."
	MsgUserNotFound     = "User not found"
	MsgNoSubscribers    = "No subscribers yet."
	MsgBlockedOK        = "User Blocked successfully"
	MsgUnblockedOK      = "User UnBlocked successfully"
	MsgDeletedOK        = "User deleted successfully"
	msgUsageChatID      = "Usage: %s <chat_id>"
	msgCurrentAPIKey    = "Current API key: %s\nUse /apikey <new_key> to rotate it."
	msgAdminActionError = "Operation failed, check the logs."
)

// Handlers adapts Telegram updates to the subscription service.
type Handlers struct {
	svc   *subscription.Service
	creds *credential.Cell
	out   subscription.Messenger
}

// NewHandlers builds Handlers. out is used for admin replies.
func NewHandlers(svc *subscription.Service, creds *credential.Cell, out subscription.Messenger) *Handlers {
	return &Handlers{svc: svc, creds: creds, out: out}
}

// Register adds every command to reg and installs the free text fallback.
func (h *Handlers) Register(reg *tg.Registry) {
	reg.RegisterCommand("/start", commands.Command{Handler: h.Start, Description: "Welcome message"})
	reg.RegisterCommand("/subscribe", commands.Command{Handler: h.Subscribe, Description: "Subscribe with your location"})
	reg.RegisterCommand("/info", commands.Command{Handler: h.Info, Description: "Current weather for your location"})
	reg.RegisterCommand("/unsubscribe", commands.Command{Handler: h.Unsubscribe, Description: "Stop weather updates"})

	reg.RegisterCommand("/subscribers", commands.Command{Handler: h.ListSubscribers, Description: "List subscribers", AdminOnly: true})
	reg.RegisterCommand("/block", commands.Command{Handler: h.Block, Description: "Block a subscriber", AdminOnly: true})
	reg.RegisterCommand("/unblock", commands.Command{Handler: h.Unblock, Description: "Unblock a subscriber", AdminOnly: true})
	reg.RegisterCommand("/remove", commands.Command{Handler: h.Remove, Description: "Remove a subscriber", AdminOnly: true})
	reg.RegisterCommand("/apikey", commands.Command{Handler: h.APIKey, Description: "Show or rotate the weather API key", AdminOnly: true})

	reg.SetTextFallback(h.Text)
}

// Start greets the sender by first name.
func (h *Handlers) Start(c tele.Context) error {
	return h.svc.Start(tghelpers.BuildContext(c), chatID(c), firstName(c))
}

// Subscribe handles /subscribe.
func (h *Handlers) Subscribe(c tele.Context) error {
	return h.svc.Subscribe(tghelpers.BuildContext(c), chatID(c))
}

// Info handles /info.
func (h *Handlers) Info(c tele.Context) error {
	return h.svc.Info(tghelpers.BuildContext(c), chatID(c))
}

// Unsubscribe handles /unsubscribe.
func (h *Handlers) Unsubscribe(c tele.Context) error {
	return h.svc.Unsubscribe(tghelpers.BuildContext(c), chatID(c))
}

// Location handles a shared location.
func (h *Handlers) Location(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Location == nil {
		return nil
	}
	return h.svc.ShareLocation(tghelpers.BuildContext(c), chatID(c), firstName(c),
		float64(msg.Location.Lat), float64(msg.Location.Lng))
}

// Text answers anything that is not a command.
func (h *Handlers) Text(c tele.Context) error {
	return h.svc.Help(tghelpers.BuildContext(c), chatID(c))
}

// RejectAdmin answers non-admin callers of admin commands.
func (h *Handlers) RejectAdmin(c tele.Context) error {
	return h.out.SendText(tghelpers.BuildContext(c), chatID(c), MsgAdminOnly)
}

// ListSubscribers replies with every stored subscriber and its flags.
func (h *Handlers) ListSubscribers(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	list, err := h.svc.List(ctx)
	if err != nil {
		_ = h.out.SendText(ctx, chatID(c), msgAdminActionError)
		return err
	}
	return h.out.SendText(ctx, chatID(c), formatSubscribers(list, h.svc.Active()))
}

// Block handles "/block <chat_id>".
func (h *Handlers) Block(c tele.Context) error {
	return h.adminAction(c, "/block", MsgBlockedOK, h.svc.Block)
}

// Unblock handles "/unblock <chat_id>".
func (h *Handlers) Unblock(c tele.Context) error {
	return h.adminAction(c, "/unblock", MsgUnblockedOK, h.svc.Unblock)
}

// Remove handles "/remove <chat_id>".
func (h *Handlers) Remove(c tele.Context) error {
	return h.adminAction(c, "/remove", MsgDeletedOK, h.svc.Remove)
}

// APIKey shows the masked key, or rotates it when an argument is given.
func (h *Handlers) APIKey(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	args := commandArgs(c.Text())
	if len(args) == 0 {
		return h.out.SendText(ctx, chatID(c), fmt.Sprintf(msgCurrentAPIKey, h.creds.Masked()))
	}
	return h.out.SendText(ctx, chatID(c), h.creds.Set(args[0]))
}

type adminFunc func(ctx context.Context, chatID int64) (subscriber.Subscriber, error)

func (h *Handlers) adminAction(c tele.Context, cmd, okText string, fn adminFunc) error {
	ctx := tghelpers.BuildContext(c)
	target, ok := parseChatID(commandArgs(c.Text()))
	if !ok {
		return h.out.SendText(ctx, chatID(c), fmt.Sprintf(msgUsageChatID, cmd))
	}
	if _, err := fn(ctx, target); err != nil {
		if errors.Is(err, subscriber.ErrNotFound) {
			return h.out.SendText(ctx, chatID(c), MsgUserNotFound)
		}
		_ = h.out.SendText(ctx, chatID(c), msgAdminActionError)
		return err
	}
	return h.out.SendText(ctx, chatID(c), okText)
}

func formatSubscribers(list []subscriber.Subscriber, active *subscription.ActiveSet) string {
	if len(list) == 0 {
		return MsgNoSubscribers
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Subscribers (%d, active %d):", len(list), active.Len())
	for _, s := range list {
		b.WriteString("\n")
		b.WriteString(strconv.FormatInt(s.ChatID, 10))
		if s.Name != "" {
			b.WriteString(" ")
			b.WriteString(s.Name)
		}
		if s.Blocked {
			b.WriteString(" [blocked]")
		}
	}
	return b.String()
}

// commandArgs drops the command token. Context.Args is not used because the
// payload is unset when a command arrives through the text route.
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) <= 1 {
		return nil
	}
	return fields[1:]
}

func parseChatID(args []string) (int64, bool) {
	if len(args) != 1 {
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func chatID(c tele.Context) int64 {
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}

func firstName(c tele.Context) string {
	if u := c.Sender(); u != nil {
		return u.FirstName
	}
	return ""
}
