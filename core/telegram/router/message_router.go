package router

import (
	"strings"
	"time"

	tg "github.com/m3rciful/weatherbot/core/telegram"
	"github.com/m3rciful/weatherbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MessageOptions controls handling of non-command messages.
type MessageOptions struct {
	// OnLocation receives location shares.
	OnLocation tele.HandlerFunc
	// UnknownText runs when no command matches and the registry has no text fallback.
	UnknownText tele.HandlerFunc
}

// MessageRoutes builds handlers for free text and location updates.
// Slash text telebot did not route (e.g. "/INFO") is matched case-insensitively
// against the public commands before falling back.
func MessageRoutes(reg *tg.Registry, opts MessageOptions) []tg.Route {
	textHandler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if reg != nil && strings.HasPrefix(text, "/") {
			if key, cmd, ok := reg.LookupCommand(strings.ToLower(text)); ok && cmd.Handler != nil && !cmd.AdminOnly {
				name := normalizeHandlerName(key)
				return summarize(c, name, start, func() error {
					return cmd.Handler(c)
				})
			}
		}
		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return summarize(c, "fallback", start, func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return summarize(c, "unknown_text", start, func() error {
				return opts.UnknownText(c)
			})
		}

		record(c, "unknown_text", outcomeSkip, start, nil)
		return nil
	}

	routes := []tg.Route{{
		Endpoint: tele.OnText,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(textHandler)),
	}}

	if opts.OnLocation != nil {
		locHandler := func(c tele.Context) error {
			return summarize(c, "location", time.Now(), func() error {
				return opts.OnLocation(c)
			})
		}
		routes = append(routes, tg.Route{
			Endpoint: tele.OnLocation,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(locHandler)),
		})
	}
	return routes
}
