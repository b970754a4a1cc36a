package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/aqibot/core/logger"
	tghelpers "github.com/m3rciful/aqibot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Recover turns handler panics into a logged error. onPanic, when set, runs
// afterwards, e.g. to reset the conversation of the offending chat.
func Recover(onPanic func(tele.Context)) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				ctx := tghelpers.BuildContext(c)
				logger.Error(ctx, "tg", "tg.panic",
					slog.String("err", fmt.Sprint(r)),
					slog.String("stack", string(debug.Stack())),
				)
				if onPanic != nil {
					onPanic(c)
				}
				err = nil
			}()
			return next(c)
		}
	}
}
