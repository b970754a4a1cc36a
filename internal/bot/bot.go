// Package bot adapts Telegram updates to the conversation machine and
// registers the bot's commands.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/m3rciful/aqibot/core/logger"
	tg "github.com/m3rciful/aqibot/core/telegram"
	"github.com/m3rciful/aqibot/core/telegram/commands"
	tghelpers "github.com/m3rciful/aqibot/core/telegram/helpers"
	"github.com/m3rciful/aqibot/core/telegram/middleware"
	"github.com/m3rciful/aqibot/core/telegram/router"
	"github.com/m3rciful/aqibot/core/telegram/state"
	"github.com/m3rciful/aqibot/internal/audit"
	"github.com/m3rciful/aqibot/internal/conversation"
	"github.com/m3rciful/aqibot/internal/observability"

	tele "gopkg.in/telebot.v4"
)

const (
	msgHealthy      = "✅ Bot is running."
	msgAdminOnly    = "⛔ This command is available to the bot admin only."
	msgSlowDown     = "⏳ Too many requests. Please wait a moment."
	msgPanicReset   = "⚠️ Something went wrong. Main menu restored."
	msgStatsNoStore = "📊 Usage statistics need a database."
	msgStatsEmpty   = "📊 No usage in the last 24 hours."

	statsWindow = 24 * time.Hour
)

// Conversation handles one turn of a dialog.
type Conversation interface {
	Handle(ctx context.Context, in conversation.Turn, out conversation.Responder) error
}

// Stats summarises recorded usage.
type Stats interface {
	Summary(ctx context.Context, since time.Time) ([]audit.ActionCount, error)
}

// Options configures a Bot.
type Options struct {
	Conversation Conversation
	Sessions     state.Manager
	// Stats is optional; /stats explains that a database is needed without it.
	Stats   Stats
	AdminID int64
	Metrics *observability.Metrics
	Clock   clockwork.Clock
}

// Bot owns the Telegram-facing handlers.
type Bot struct {
	conv     Conversation
	sessions state.Manager
	stats    Stats
	adminID  int64
	metrics  *observability.Metrics
	clock    clockwork.Clock
}

// New validates opts and builds a Bot.
func New(opts Options) (*Bot, error) {
	if opts.Conversation == nil {
		return nil, errors.New("bot: conversation is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("bot: session manager is required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Bot{
		conv:     opts.Conversation,
		sessions: opts.Sessions,
		stats:    opts.Stats,
		adminID:  opts.AdminID,
		metrics:  opts.Metrics,
		clock:    clock,
	}, nil
}

// Registry returns a command registry with the bot's commands.
func (b *Bot) Registry() *tg.Registry {
	reg := tg.NewRegistry()
	reg.RegisterCommand("/start", commands.Command{
		Handler:     b.onStart,
		Description: "Show the main menu",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     b.onCancel,
		Description: "Cancel the current selection",
	})
	reg.RegisterCommand("/health", commands.Command{
		Handler:     b.onHealth,
		Description: "Check that the bot is running",
		Hidden:      true,
	})
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     b.onStats,
		Description: "Usage statistics for the last 24 hours",
		AdminOnly:   true,
	})
	reg.SetTextFallback(b.onText)
	return reg
}

// Routes builds every handler route for reg.
func (b *Bot) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID:       b.adminID,
		OnAdminReject: b.onAdminReject,
	})
	return append(routes, router.MessageRoutes(reg, router.MessageOptions{
		Location: b.onLocation,
		Media:    b.onMedia,
		Sessions: b.sessions,
		Admin: middleware.AdminOptions{
			AdminID:  b.adminID,
			OnReject: b.onAdminReject,
		},
	})...)
}

// MiddlewareOptions returns the hooks the shared middleware chain calls back into.
func (b *Bot) MiddlewareOptions() tg.MiddlewareOptions {
	return tg.MiddlewareOptions{
		OnLimited: func(c tele.Context) error {
			return tghelpers.SendText(c, msgSlowDown)
		},
		OnUpdate: b.metrics.Update,
		OnPanic:  b.resetAfterPanic,
	}
}

func (b *Bot) onStart(c tele.Context) error  { return b.turn(c, conversation.Start()) }
func (b *Bot) onCancel(c tele.Context) error { return b.turn(c, conversation.Cancel()) }
func (b *Bot) onText(c tele.Context) error   { return b.turn(c, actionFromText(c.Text())) }

// onMedia handles attachments sent mid-dialog; the router only forwards them
// while a session is active.
func (b *Bot) onMedia(c tele.Context) error { return b.turn(c, conversation.Cancel()) }

func (b *Bot) onLocation(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Location == nil {
		return nil
	}
	return b.turn(c, conversation.Location(float64(msg.Location.Lat), float64(msg.Location.Lng)))
}

func (b *Bot) turn(c tele.Context, a conversation.Action) error {
	ctx := tghelpers.BuildContext(c)
	return b.conv.Handle(ctx, conversation.Turn{
		SessionID: tghelpers.ConversationID(c),
		User:      userOf(c),
		Action:    a,
	}, responder{c: c})
}

func userOf(c tele.Context) conversation.User {
	u := c.Sender()
	if u == nil {
		return conversation.User{}
	}
	return conversation.User{ID: u.ID, Username: u.Username, FirstName: u.FirstName}
}

func (b *Bot) onHealth(c tele.Context) error {
	return tghelpers.SendText(c, msgHealthy)
}

func (b *Bot) onAdminReject(c tele.Context) error {
	return tghelpers.SendText(c, msgAdminOnly)
}

func (b *Bot) onStats(c tele.Context) error {
	if b.stats == nil {
		return tghelpers.SendText(c, msgStatsNoStore)
	}
	ctx := tghelpers.BuildContext(c)
	rows, err := b.stats.Summary(ctx, b.clock.Now().Add(-statsWindow))
	if err != nil {
		logger.Warn(ctx, "tg", "stats.fail", slog.String("err", err.Error()))
		return fmt.Errorf("bot: stats: %w", err)
	}
	return tghelpers.SendText(c, formatStats(rows))
}

func formatStats(rows []audit.ActionCount) string {
	if len(rows) == 0 {
		return msgStatsEmpty
	}
	var sb strings.Builder
	sb.WriteString("📊 Usage in the last 24 hours:\n")
	total := 0
	for _, r := range rows {
		fmt.Fprintf(&sb, "\n%s: %d (%d users)", r.Action, r.Count, r.Users)
		total += r.Count
	}
	fmt.Fprintf(&sb, "\n\nTotal: %d", total)
	return sb.String()
}

// resetAfterPanic drops the session of a chat whose handler panicked, so the
// next message starts from a clean state.
func (b *Bot) resetAfterPanic(c tele.Context) {
	ctx := tghelpers.BuildContext(c)
	id := tghelpers.ConversationID(c)
	if err := b.sessions.Clear(ctx, id); err != nil {
		logger.Warn(ctx, "tg", "panic.reset.fail",
			slog.Int64("conversation_id", id),
			slog.String("err", err.Error()),
		)
	}
	if err := tghelpers.SendText(c, msgPanicReset, &tele.SendOptions{ReplyMarkup: mainMarkup()}); err != nil {
		logger.Warn(ctx, "tg", "panic.reply.fail", slog.String("err", err.Error()))
	}
}
