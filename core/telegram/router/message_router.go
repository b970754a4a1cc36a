package router

import (
	"strings"

	tg "github.com/m3rciful/aqibot/core/telegram"
	"github.com/m3rciful/aqibot/core/telegram/middleware"
	"github.com/m3rciful/aqibot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// MessageOptions wires the handlers for non-command messages.
type MessageOptions struct {
	// Text receives plain text. Unregistered slash commands are dropped.
	Text tele.HandlerFunc
	// Location receives shared device locations.
	Location tele.HandlerFunc
	// Media receives photos, documents and other attachments, but only while
	// Sessions reports an active conversation. Outside a dialog they are ignored.
	Media    tele.HandlerFunc
	Sessions state.Manager

	Admin middleware.AdminOptions
}

// mediaEndpoints are the attachment kinds forwarded to MessageOptions.Media.
var mediaEndpoints = []string{
	tele.OnPhoto,
	tele.OnDocument,
	tele.OnSticker,
	tele.OnVoice,
	tele.OnVideo,
	tele.OnAudio,
	tele.OnAnimation,
	tele.OnContact,
}

// MessageRoutes builds handlers for text, location and attachment updates.
// Text starting with "/" that names a registered command or alias runs that
// command, so "/start@bot" and aliases behave like the bare command. Other
// slash text is ignored and never reaches the text handler.
func MessageRoutes(reg *tg.Registry, opts MessageOptions) []tg.Route {
	fallback := opts.Text
	if fallback == nil && reg != nil {
		fallback = reg.TextFallback()
	}
	onText := func(c tele.Context) error {
		if text := c.Text(); strings.HasPrefix(text, "/") {
			if reg != nil {
				if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
					return handled(c, handlerName(key), wrapCommand(cmd, opts.Admin))
				}
			}
			skipped(c, "unknown_command")
			return nil
		}
		if fallback == nil {
			skipped(c, "unknown_text")
			return nil
		}
		return handled(c, "text", fallback)
	}
	routes := []tg.Route{{Endpoint: tele.OnText, Handler: onText}}

	if opts.Location != nil {
		routes = append(routes, tg.Route{
			Endpoint: tele.OnLocation,
			Handler:  func(c tele.Context) error { return handled(c, "location", opts.Location) },
		})
	}

	if opts.Media != nil && opts.Sessions != nil {
		onMedia := middleware.InFlow(opts.Sessions)(func(c tele.Context) error {
			return handled(c, "media", opts.Media)
		})
		for _, ep := range mediaEndpoints {
			routes = append(routes, tg.Route{Endpoint: ep, Handler: onMedia})
		}
	}
	return routes
}
