package telegram

import (
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/aqibot/core/config"

	tele "gopkg.in/telebot.v4"
)

// The bot only reacts to messages; Telegram is asked not to deliver other update types.
var allowedUpdates = []string{"message"}

// newPoller builds the update source for cfg.Telegram.RunMode. The returned
// attrs describe it for the startup log.
func newPoller(cfg *coreconfig.Config) (tele.Poller, []slog.Attr) {
	var (
		base  tele.Poller
		attrs []slog.Attr
	)
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		wh := &tele.Webhook{
			Listen:         fmt.Sprintf("%s:%d", cfg.Webhook.Listen, cfg.Webhook.Port),
			AllowedUpdates: allowedUpdates,
			Endpoint:       &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
		base = wh
		attrs = []slog.Attr{
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", wh.Listen),
			slog.String("public_url", cfg.Webhook.URL),
		}
	} else {
		timeout := pollTimeout(cfg)
		base = &tele.LongPoller{Timeout: timeout, AllowedUpdates: allowedUpdates}
		attrs = []slog.Attr{
			slog.String("mode", coreconfig.RunModeLongpoll),
			slog.Duration("timeout", timeout),
		}
	}
	return tele.NewMiddlewarePoller(base, acceptUpdate), attrs
}

func pollTimeout(cfg *coreconfig.Config) time.Duration {
	if s := cfg.Telegram.LongPollTimeoutSeconds; s > 0 {
		return time.Duration(s) * time.Second
	}
	return 10 * time.Second
}

// acceptUpdate drops updates without a message and messages from anything
// but private chats.
func acceptUpdate(u *tele.Update) bool {
	if u == nil || u.Message == nil {
		return false
	}
	return u.Message.Chat == nil || u.Message.Chat.Type == tele.ChatPrivate
}
