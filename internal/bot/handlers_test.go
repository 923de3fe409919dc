package bot

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tg "github.com/m3rciful/weatherbot/core/telegram"
	"github.com/m3rciful/weatherbot/internal/credential"
	"github.com/m3rciful/weatherbot/internal/geocode"
	"github.com/m3rciful/weatherbot/internal/subscriber"
	"github.com/m3rciful/weatherbot/internal/subscription"
	"github.com/m3rciful/weatherbot/internal/weather"

	tele "gopkg.in/telebot.v4"
)

type recorder struct {
	mu       sync.Mutex
	texts    []string
	location []bool
}

func (r *recorder) SendText(_ context.Context, _ int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	r.location = append(r.location, false)
	return nil
}

func (r *recorder) SendLocationRequest(_ context.Context, _ int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	r.location = append(r.location, true)
	return nil
}

func (r *recorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.texts) == 0 {
		return ""
	}
	return r.texts[len(r.texts)-1]
}

type stubWeather struct{}

func (stubWeather) Current(context.Context, string, string) (weather.Conditions, error) {
	k := 300.0
	return weather.Conditions{Description: "clear sky", Kelvin: &k}, nil
}

const adminID = 500

type harness struct {
	bot   *tele.Bot
	h     *Handlers
	out   *recorder
	repo  *subscriber.MemoryRepository
	creds *credential.Cell
	reg   *tg.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)

	out := &recorder{}
	repo := subscriber.NewMemoryRepository()
	creds := credential.NewCell("abcdefgh")
	svc, err := subscription.NewService(subscription.Deps{
		Repo:        repo,
		Geocoder:    geocode.Static{City: "Berlin"},
		Weather:     stubWeather{},
		Credentials: creds,
		Messenger:   out,
	})
	require.NoError(t, err)
	return &harness{
		bot:   b,
		h:     NewHandlers(svc, creds, out),
		out:   out,
		repo:  repo,
		creds: creds,
		reg:   tg.NewRegistry(),
	}
}

func message(chatID int64, text string) tele.Update {
	return tele.Update{
		ID: 1,
		Message: &tele.Message{
			ID:     1,
			Text:   text,
			Chat:   &tele.Chat{ID: chatID},
			Sender: &tele.User{ID: chatID, FirstName: "Ada"},
		},
	}
}

func location(chatID int64) tele.Update {
	upd := message(chatID, "")
	upd.Message.Location = &tele.Location{Lat: 52.52, Lng: 13.40}
	return upd
}

func route(t *testing.T, routes []tg.Route, endpoint any) tele.HandlerFunc {
	t.Helper()
	for _, r := range routes {
		if r.Endpoint == endpoint {
			return r.Handler
		}
	}
	t.Fatalf("route %v not found", endpoint)
	return nil
}

func TestRegisterCommands(t *testing.T) {
	hs := newHarness(t)
	hs.h.Register(hs.reg)

	visible := hs.reg.ListCommands(true)
	names := make([]string, 0, len(visible))
	for _, c := range visible {
		names = append(names, c.Text)
	}
	assert.Equal(t, []string{"info", "start", "subscribe", "unsubscribe"}, names)
	assert.Len(t, hs.reg.Commands(), 9)
	assert.NotNil(t, hs.reg.TextFallback())
}

func TestSubscribeAndLocationRoutes(t *testing.T) {
	hs := newHarness(t)
	routes := hs.h.Routes(hs.reg, adminID)

	require.NoError(t, route(t, routes, "/subscribe")(hs.bot.NewContext(message(10, "/subscribe"))))
	assert.Equal(t, subscription.MsgSubscribePrompt, hs.out.last())
	assert.True(t, hs.out.location[0])

	require.NoError(t, route(t, routes, tele.OnLocation)(hs.bot.NewContext(location(10))))
	rec, err := hs.repo.FindByChatID(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "Ada", rec.Name)
	assert.Equal(t, "Weather in Berlin:\nclear sky\nTemperature: 26.85°C", hs.out.last())
}

func TestFreeTextGetsHelp(t *testing.T) {
	hs := newHarness(t)
	routes := hs.h.Routes(hs.reg, adminID)

	require.NoError(t, route(t, routes, tele.OnText)(hs.bot.NewContext(message(11, "hello"))))
	assert.Equal(t, subscription.MsgHelp, hs.out.last())
}

func TestAdminCommandsRejectOthers(t *testing.T) {
	hs := newHarness(t)
	routes := hs.h.Routes(hs.reg, adminID)

	require.NoError(t, route(t, routes, "/apikey")(hs.bot.NewContext(message(12, "/apikey stolen"))))
	assert.Equal(t, MsgAdminOnly, hs.out.last())
	assert.Equal(t, "abcdefgh", hs.creds.Get())
}

func TestAdminAPIKey(t *testing.T) {
	hs := newHarness(t)
	routes := hs.h.Routes(hs.reg, adminID)
	apikey := route(t, routes, "/apikey")

	require.NoError(t, apikey(hs.bot.NewContext(message(adminID, "/apikey"))))
	assert.Contains(t, hs.out.last(), "****efgh")

	require.NoError(t, apikey(hs.bot.NewContext(message(adminID, "/apikey new-key"))))
	assert.Equal(t, credential.UpdatedMessage, hs.out.last())
	assert.Equal(t, "new-key", hs.creds.Get())
}

func TestAdminBlockUnblockRemove(t *testing.T) {
	ctx := context.Background()
	hs := newHarness(t)
	routes := hs.h.Routes(hs.reg, adminID)
	_, err := hs.repo.Create(ctx, 77, "Bo")
	require.NoError(t, err)

	require.NoError(t, route(t, routes, "/block")(hs.bot.NewContext(message(adminID, "/block 77"))))
	assert.Equal(t, MsgBlockedOK, hs.out.last())
	rec, _ := hs.repo.FindByChatID(ctx, 77)
	assert.True(t, rec.Blocked)

	require.NoError(t, route(t, routes, "/subscribers")(hs.bot.NewContext(message(adminID, "/subscribers"))))
	assert.Contains(t, hs.out.last(), "77 Bo [blocked]")

	require.NoError(t, route(t, routes, "/unblock")(hs.bot.NewContext(message(adminID, "/unblock 77"))))
	assert.Equal(t, MsgUnblockedOK, hs.out.last())

	require.NoError(t, route(t, routes, "/remove")(hs.bot.NewContext(message(adminID, "/remove 77"))))
	assert.Equal(t, MsgDeletedOK, hs.out.last())

	require.NoError(t, route(t, routes, "/remove")(hs.bot.NewContext(message(adminID, "/remove 77"))))
	assert.Equal(t, MsgUserNotFound, hs.out.last())

	require.NoError(t, route(t, routes, "/block")(hs.bot.NewContext(message(adminID, "/block abc"))))
	assert.Equal(t, "Usage: /block <chat_id>", hs.out.last())
}

func TestListSubscribersEmpty(t *testing.T) {
	hs := newHarness(t)
	routes := hs.h.Routes(hs.reg, adminID)
	require.NoError(t, route(t, routes, "/subscribers")(hs.bot.NewContext(message(adminID, "/subscribers"))))
	assert.Equal(t, MsgNoSubscribers, hs.out.last())
}

func TestCommandArgs(t *testing.T) {
	assert.Nil(t, commandArgs("/block"))
	assert.Equal(t, []string{"42"}, commandArgs("/block   42 "))
	_, ok := parseChatID([]string{"1", "2"})
	assert.False(t, ok)
	id, ok := parseChatID([]string{"-100123"})
	assert.True(t, ok)
	assert.Equal(t, int64(-100123), id)
}

func TestMessengerUnbound(t *testing.T) {
	m := NewMessenger()
	assert.Error(t, m.SendText(context.Background(), 1, "hi"))
}
