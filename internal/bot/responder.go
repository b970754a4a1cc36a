package bot

import (
	"context"
	"log/slog"

	"github.com/m3rciful/aqibot/core/logger"
	tghelpers "github.com/m3rciful/aqibot/core/telegram/helpers"
	"github.com/m3rciful/aqibot/internal/conversation"

	tele "gopkg.in/telebot.v4"
)

// responder delivers conversation replies to the chat of c.
type responder struct {
	c tele.Context
}

func (r responder) Reply(_ context.Context, rep conversation.Reply) error {
	rm := markup(rep.Keyboard)
	if rep.Markdown {
		return tghelpers.SendMD(r.c, rep.Text, rm)
	}
	return tghelpers.SendText(r.c, rep.Text, &tele.SendOptions{ReplyMarkup: rm})
}

func (r responder) Typing(ctx context.Context) {
	if err := tghelpers.SendAction(r.c, tele.Typing); err != nil {
		logger.Debug(ctx, "tg", "typing.fail", slog.String("err", err.Error()))
	}
}
