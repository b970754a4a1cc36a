package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/aqibot/core/config"
	"github.com/m3rciful/aqibot/core/logger"
	tghelpers "github.com/m3rciful/aqibot/core/telegram/helpers"
	tgsender "github.com/m3rciful/aqibot/core/telegram/sender"
	"github.com/m3rciful/aqibot/core/telegram/sequence"

	tele "gopkg.in/telebot.v4"
)

const defaultDrainTimeout = 15 * time.Second

// Middleware is a named global middleware installed with bot.Use.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// Route binds a handler to a telebot endpoint.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	// Sequencer, when set, makes the poller synchronous and runs updates of
	// one conversation in arrival order. It is drained before OnStop runs.
	Sequencer    *sequence.Sequencer
	DrainTimeout time.Duration

	Middlewares []Middleware
	Routes      []Route

	// OnError receives handler errors. Defaults to logging them.
	OnError func(error, tele.Context)

	// KeepWebhook leaves a registered webhook in place in longpoll mode.
	KeepWebhook bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes running components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram starts the bot and blocks until ctx is done or the poller
// stops. Cancellation of ctx is a clean shutdown and returns nil.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if opts.Config == nil {
		return errors.New("telegram: nil config provided")
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.OnError == nil {
		opts.OnError = logHandlerError
	}

	started := time.Now()
	poller, pollAttrs := newPoller(opts.Config)
	bot, err := tele.NewBot(tele.Settings{
		Token:       opts.Config.Telegram.Token,
		Poller:      poller,
		Client:      BuildHTTPClient(pollTimeout(opts.Config)),
		Synchronous: opts.Sequencer != nil,
		OnError:     opts.OnError,
	})
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	logger.TG.LogAttrs(ctx, slog.LevelInfo, "bot.ready", append(pollAttrs,
		slog.String("username", bot.Me.Username),
		slog.Duration("duration", logger.RoundMS(time.Since(started))),
	)...)

	if opts.Config.Telegram.RunMode == coreconfig.RunModeLongpoll && !opts.KeepWebhook {
		if err := bot.RemoveWebhook(); err != nil {
			logger.Warn(ctx, "tg", "webhook.delete", slog.String("status", "fail"), slog.String("err", err.Error()))
		}
	}

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	tghelpers.SetDispatcher(dispatcher)
	defer func() {
		dispatcher.Close()
		tghelpers.SetDispatcher(nil)
	}()

	install(bot, opts)
	rt := Runtime{Bot: bot, Dispatcher: dispatcher, Registry: opts.Registry}

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		bot.Start()
	}()
	select {
	case <-ctx.Done():
		bot.Stop()
		<-stopped
	case <-stopped:
	}

	// ctx is done by now; shutdown work gets its own deadline.
	drain := opts.DrainTimeout
	if drain <= 0 {
		drain = defaultDrainTimeout
	}
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drain)
	defer cancel()

	if opts.Sequencer != nil {
		if err := opts.Sequencer.Wait(stopCtx); err != nil {
			logger.Warn(stopCtx, "tg", "sequencer.drain",
				slog.String("status", "fail"),
				slog.Int("pending_count", opts.Sequencer.Pending()),
				slog.String("err", err.Error()),
			)
		}
	}
	if opts.OnStop != nil {
		if err := opts.OnStop(stopCtx, rt); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// install registers middlewares, routes and the command menu. The sequencer
// wraps everything else so ordering holds before any other middleware runs.
func install(bot *tele.Bot, opts RunOptions) {
	if opts.Sequencer != nil {
		bot.Use(sequence.Middleware(opts.Sequencer, tghelpers.ConversationID, opts.OnError))
	}
	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
		}
	}
	InitBotCommands(bot, opts.Registry)
}

func logHandlerError(err error, c tele.Context) {
	ctx := context.Background()
	if c != nil {
		ctx = tghelpers.BuildContext(c)
	}
	logger.Error(ctx, "tg", "handler.error", slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
}
