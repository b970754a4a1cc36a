package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/aqibot/core/config"
	"github.com/m3rciful/aqibot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MiddlewareOptions customises DefaultMiddlewares.
type MiddlewareOptions struct {
	// OnLimited answers updates rejected by the rate limiter.
	OnLimited func(tele.Context) error
	// OnUpdate observes the kind of every accepted update.
	OnUpdate func(kind string)
	// OnPanic runs after a handler panic was recovered.
	OnPanic func(tele.Context)
}

// DefaultMiddlewares builds the shared middleware chain for bots.
func DefaultMiddlewares(cfg *coreconfig.Config, opts MiddlewareOptions) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.Recover(opts.OnPanic)},
	}

	if cfg != nil {
		interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond
		if interval > 0 {
			ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
			for _, t := range cfg.RateLimit.ExcludeUpdates {
				ex[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
			}
			mws = append(mws, Middleware{
				Name: "rate_limit",
				Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
					Interval:  interval,
					Exclude:   ex,
					OnLimited: opts.OnLimited,
				}),
			})
		}
	}

	mws = append(mws,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "updates", Use: middleware.UpdateCounter(opts.OnUpdate)},
	)

	return mws
}
