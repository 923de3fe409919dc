package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/weatherbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

func TestBuildContextCachesUpdateMeta(t *testing.T) {
	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	c := b.NewContext(tele.Update{ID: 3, Message: &tele.Message{
		Chat:   &tele.Chat{ID: 40},
		Sender: &tele.User{ID: 41},
	}})

	assert.Equal(t, int64(40), ChatID(c))
	assert.Equal(t, int64(41), UserID(c))

	ctx := BuildContext(c)
	assert.Equal(t, logger.BuildRID(3, 40, 41), logger.RIDFrom(ctx))
	assert.Equal(t, int64(40), logger.ChatIDFrom(ctx))

	tagged := WithHandler(c, "subscribe")
	cached, ok := ContextFrom(c)
	require.True(t, ok)
	assert.Equal(t, tagged, cached)
	assert.Equal(t, logger.RIDFrom(ctx), logger.RIDFrom(BuildContext(c)))
}

func TestBuildContextWithoutChat(t *testing.T) {
	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	c := b.NewContext(tele.Update{ID: 1})
	assert.Zero(t, ChatID(c))
	assert.Zero(t, UserID(c))
	assert.NotNil(t, BuildContext(c))
	assert.NotNil(t, BuildContext(nil))
}
