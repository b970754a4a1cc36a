package middleware

import (
	"log/slog"

	"github.com/m3rciful/aqibot/core/logger"
	tghelpers "github.com/m3rciful/aqibot/core/telegram/helpers"
	"github.com/m3rciful/aqibot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// InFlow returns a middleware that passes the update on only while the
// conversation has an active (non-idle) session. Other updates are dropped.
func InFlow(mgr state.Manager) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			ctx := tghelpers.BuildContext(c)
			id := tghelpers.ConversationID(c)
			if mgr.InProgress(ctx, id) {
				logger.Debug(ctx, "tg", "fsm.match", slog.Int64("conversation_id", id))
				return next(c)
			}
			logger.Debug(ctx, "tg", "fsm.skip", slog.Int64("conversation_id", id))
			return nil
		}
	}
}
