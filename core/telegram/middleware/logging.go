package middleware

import (
	"log/slog"

	"github.com/m3rciful/aqibot/core/logger"
	tghelpers "github.com/m3rciful/aqibot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const loggedKey = "update_logged"

// LoggerMiddleware builds the update's logging context and logs a sampled
// debug line on receipt. Applying it more than once per update logs once.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		if c.Get(loggedKey) != nil {
			return next(c)
		}
		c.Set(loggedKey, true)
		if !logger.ShouldSampleDebug() {
			return next(c)
		}

		upd := c.Update()
		attrs := []slog.Attr{slog.String("kind", UpdateKind(upd))}
		if chat := c.Chat(); chat != nil {
			attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
		}
		if user := c.Sender(); user != nil {
			attrs = append(attrs,
				slog.String("username", logger.SanitizeLimit(user.Username, 64)),
				slog.String("lang", user.LanguageCode),
			)
		}
		if upd.Message != nil {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(c.Text(), 256)))
		}
		logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", attrs...)
		return next(c)
	}
}
