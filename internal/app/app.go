// Package app assembles the bot from configuration: sessions, the IQAir
// client, usage audit, the conversation machine and the ops listener.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/aqibot/core/logger"
	coretelegram "github.com/m3rciful/aqibot/core/telegram"
	tgsender "github.com/m3rciful/aqibot/core/telegram/sender"
	"github.com/m3rciful/aqibot/core/telegram/sequence"
	"github.com/m3rciful/aqibot/core/telegram/state"
	"github.com/m3rciful/aqibot/internal/airvisual"
	"github.com/m3rciful/aqibot/internal/audit"
	"github.com/m3rciful/aqibot/internal/bot"
	"github.com/m3rciful/aqibot/internal/catalog"
	"github.com/m3rciful/aqibot/internal/config"
	"github.com/m3rciful/aqibot/internal/conversation"
	"github.com/m3rciful/aqibot/internal/observability"
	"github.com/m3rciful/aqibot/internal/ops"
)

// App holds the wired components and their shutdown order.
type App struct {
	cfg      *config.Config
	db       *sqlx.DB
	rdb      redis.UniversalClient
	sessions state.Manager
	recorder *audit.Recorder
	bot      *bot.Bot
	ops      *ops.Server
	opsDone  chan error
}

// Options carries infrastructure created before the app.
type Options struct {
	Config *config.Config
	// DB is nil when no database is configured; usage then goes to the log.
	DB *sqlx.DB
	// Metrics defaults to metrics registered with the default registry.
	Metrics *observability.Metrics
	// Redis overrides the client built from the session config.
	Redis redis.UniversalClient
}

// New wires every component. Nothing is started until the bot runs.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics()
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	air, err := airvisual.NewClient(airvisual.Options{
		APIKey:  cfg.AirVisual.APIKey,
		BaseURL: cfg.AirVisual.BaseURL,
		Timeout: cfg.AirVisual.Timeout(),
		Metrics: metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	a := &App{cfg: cfg, db: opts.DB}

	switch cfg.Session.Backend {
	case config.SessionRedis:
		a.rdb = opts.Redis
		if a.rdb == nil {
			a.rdb = redis.NewClient(&redis.Options{
				Addr:     cfg.Session.RedisAddr,
				Password: cfg.Session.RedisPassword,
				DB:       cfg.Session.RedisDB,
			})
		}
		a.sessions = state.NewRedisManager(a.rdb, state.RedisOptions{
			Prefix: cfg.Session.KeyPrefix,
			TTL:    cfg.Session.TTL(),
		})
	default:
		a.sessions = state.NewMemoryManager(cfg.Session.TTL(), nil)
	}

	var (
		sink  audit.Sink = audit.LogSink{}
		stats bot.Stats
	)
	if a.db != nil {
		store := audit.NewStore(a.db)
		sink, stats = store, store
	}
	a.recorder = audit.NewRecorder(sink, audit.Options{
		QueueSize: cfg.Audit.QueueSize,
		Metrics:   metrics,
	})

	machine, err := conversation.New(conversation.Options{
		Catalog:  cat,
		Sessions: a.sessions,
		Air:      air,
		Observer: bot.AuditObserver(a.recorder),
		Metrics:  metrics,
		Country:  cfg.AirVisual.Country,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	a.bot, err = bot.New(bot.Options{
		Conversation: machine,
		Sessions:     a.sessions,
		Stats:        stats,
		AdminID:      cfg.Telegram.AdminID,
		Metrics:      metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	if cfg.Ops.Listen != "" {
		a.ops = ops.NewServer(ops.Options{Addr: cfg.Ops.Listen, Checks: a.readiness()})
	}

	logger.Info(context.Background(), "app", "wired",
		slog.Int("regions", cat.Len()),
		slog.String("sessions", cfg.Session.Backend),
		slog.Bool("database", a.db != nil),
		slog.Bool("ops", a.ops != nil),
	)
	return a, nil
}

func (a *App) readiness() []ops.Check {
	checks := []ops.Check{{Name: "sessions", Fn: a.sessions.Ping}}
	if a.db != nil {
		checks = append(checks, ops.Check{Name: "database", Fn: a.db.PingContext})
	}
	return checks
}

// TelegramRunOptions describes how the Telegram runtime should run this app.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := a.bot.Registry()
	core := a.cfg.CoreConfig()
	return coretelegram.RunOptions{
		Config:   core,
		Registry: reg,
		DispatcherOptions: tgsender.Options{
			MaxRetries: 2,
		},
		Sequencer:   sequence.New(),
		Middlewares: coretelegram.DefaultMiddlewares(core, a.bot.MiddlewareOptions()),
		Routes:      a.bot.Routes(reg),
		OnStart: func(context.Context, coretelegram.Runtime) error {
			a.startOps()
			return nil
		},
		OnStop: func(ctx context.Context, _ coretelegram.Runtime) error {
			return a.Close(ctx)
		},
	}, nil
}

func (a *App) startOps() {
	if a.ops == nil {
		return
	}
	a.opsDone = make(chan error, 1)
	go func() {
		err := a.ops.Start()
		if err != nil {
			logger.Error(context.Background(), "ops", "listen.fail", slog.String("err", err.Error()))
		}
		a.opsDone <- err
	}()
}

// Close stops the ops listener, drains the audit queue and closes connections.
// Every step runs even if an earlier one fails.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.ops != nil && a.opsDone != nil {
		if err := a.ops.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("ops shutdown: %w", err))
		}
	}
	start := time.Now()
	if err := a.recorder.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("audit drain: %w", err))
	}
	logger.Info(ctx, "app", "audit.drained",
		slog.Uint64("dropped", a.recorder.Dropped()),
		slog.Uint64("failed", a.recorder.Failed()),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("db close: %w", err))
		}
	}
	return errors.Join(errs...)
}
