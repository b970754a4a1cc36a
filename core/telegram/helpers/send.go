// Package helpers holds per-update utilities shared by handlers and
// middlewares: the logging context and the outbound send path.
package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/aqibot/core/logger"
	"github.com/m3rciful/aqibot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

const (
	sentKey     = "sent_messages"
	keyboardKey = "sent_keyboard"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes sends through d. With nil, sends run inline.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// Sent reports how many messages the update produced so far and whether
// any of them carried a keyboard.
func Sent(c tele.Context) (int, bool) {
	n, _ := c.Get(sentKey).(int)
	kb, _ := c.Get(keyboardKey).(bool)
	return n, kb
}

func noteSent(c tele.Context, keyboard bool) {
	n, _ := c.Get(sentKey).(int)
	c.Set(sentKey, n+1)
	if keyboard {
		c.Set(keyboardKey, true)
	}
}

// dispatch hands run to the dispatcher, or runs it inline when none is set.
// A job the dispatcher refuses is dropped and logged: running it inline
// could overtake replies still queued for the same chat.
func dispatch(c tele.Context, action, method string, run func() error) error {
	d := dispatcher.Load()
	if d == nil {
		return run()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, action, method, run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Error(ctx, "tg.sender", "queue.drop",
			slog.String("action", action),
			slog.String("method", method),
			slog.String("err", err.Error()),
		)
	}
	return err
}

// SendText sends text without parse mode. opts[0], when given, is used as is.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var so *tele.SendOptions
	if len(opts) > 0 && opts[0] != nil {
		so = opts[0]
	}
	err := dispatch(c, "send.text", "sendMessage", func() error {
		if so == nil {
			return c.Send(text)
		}
		return c.Send(text, so)
	})
	if err == nil {
		noteSent(c, so != nil && so.ReplyMarkup != nil)
	}
	return err
}

// SendMD sends Markdown text with an optional reply markup.
func SendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	so := &tele.SendOptions{ParseMode: tele.ModeMarkdown}
	if len(markup) > 0 {
		so.ReplyMarkup = markup[0]
	}
	return SendText(c, text, so)
}

// SendAction sends a chat action such as "typing" through the same queue as
// messages, so it is ordered with the replies around it.
func SendAction(c tele.Context, action tele.ChatAction) error {
	return dispatch(c, "send.action", "sendChatAction", func() error {
		return c.Notify(action)
	})
}
