package middleware

import (
	"log/slog"

	"github.com/m3rciful/aqibot/core/logger"
	tghelpers "github.com/m3rciful/aqibot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// AdminOptions names the admin account and the reply for everyone else.
// A zero AdminID disables admin commands.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

// Allows reports whether c was sent by the configured admin.
func (o AdminOptions) Allows(c tele.Context) bool {
	if o.AdminID == 0 {
		return false
	}
	u := c.Sender()
	return u != nil && u.ID == o.AdminID
}

// AdminOnly gates next behind AdminOptions.Allows.
func AdminOnly(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if opts.Allows(c) {
				return next(c)
			}
			logger.Info(tghelpers.BuildContext(c), "tg", "admin.reject",
				slog.Bool("configured", opts.AdminID != 0))
			if opts.OnReject == nil {
				return nil
			}
			return opts.OnReject(c)
		}
	}
}
