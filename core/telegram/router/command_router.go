package router

import (
	"log/slog"

	"github.com/m3rciful/aqibot/core/logger"
	tg "github.com/m3rciful/aqibot/core/telegram"
	"github.com/m3rciful/aqibot/core/telegram/commands"
	"github.com/m3rciful/aqibot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures the admin gate of command routes.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes binds every registered command to its endpoint.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	admin := middleware.AdminOptions{AdminID: opts.AdminID, OnReject: opts.OnAdminReject}

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for key, def := range reg.Commands() {
		name, h := handlerName(key), wrapCommand(def, admin)
		routes = append(routes, tg.Route{
			Endpoint: key,
			Handler:  func(c tele.Context) error { return handled(c, name, h) },
		})
	}
	logger.TWire.Info("routes.commands", slog.String("event", "routes.commands"), slog.Int("count", len(routes)))
	return routes
}

// wrapCommand applies the admin gate to admin-only commands.
func wrapCommand(def commands.Command, admin middleware.AdminOptions) tele.HandlerFunc {
	if def.AdminOnly {
		return middleware.AdminOnly(admin)(def.Handler)
	}
	return def.Handler
}
