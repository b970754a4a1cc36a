package middleware

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// UpdateKind classifies an update for metrics and rate limit exclusions:
// command, message, location or other.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Message == nil:
		return "other"
	case upd.Message.Location != nil:
		return "location"
	case strings.HasPrefix(upd.Message.Text, "/"):
		return "command"
	case upd.Message.Text != "":
		return "message"
	}
	return "other"
}

// UpdateCounter returns a middleware that reports the kind of every update to observe.
func UpdateCounter(observe func(kind string)) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if observe != nil {
				observe(UpdateKind(c.Update()))
			}
			return next(c)
		}
	}
}
