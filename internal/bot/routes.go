package bot

import (
	tg "github.com/m3rciful/weatherbot/core/telegram"
	"github.com/m3rciful/weatherbot/core/telegram/router"
)

// Routes registers the handlers on reg and returns every bot route.
func (h *Handlers) Routes(reg *tg.Registry, adminID int64) []tg.Route {
	h.Register(reg)
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID:       adminID,
		OnAdminReject: h.RejectAdmin,
	})
	return append(routes, router.MessageRoutes(reg, router.MessageOptions{
		OnLocation: h.Location,
	})...)
}
