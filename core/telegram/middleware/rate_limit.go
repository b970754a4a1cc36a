package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/m3rciful/aqibot/core/logger"
	tghelpers "github.com/m3rciful/aqibot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures RateLimitMiddleware.
type RateLimitOptions struct {
	// Interval is the minimum gap between two updates of one user.
	Interval time.Duration
	// Exclude lists update kinds (see UpdateKind) that are never limited.
	// Commands count as "message".
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	// Clock defaults to the real clock.
	Clock clockwork.Clock
}

// lastSeen remembers the last accepted update per user. Entries older than
// the interval are pruned once the map reaches pruneAt.
type lastSeen struct {
	mu      sync.Mutex
	at      map[int64]time.Time
	pruneAt int
}

const minPruneAt = 1024

func (l *lastSeen) allow(user int64, now time.Time, interval time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.at[user]; ok && now.Sub(last) < interval {
		return false
	}
	if len(l.at) >= l.pruneAt {
		for id, t := range l.at {
			if now.Sub(t) >= interval {
				delete(l.at, id)
			}
		}
		l.pruneAt = max(2*len(l.at), minPruneAt)
	}
	l.at[user] = now
	return true
}

// RateLimitMiddleware drops updates that arrive sooner than Interval after
// the previous accepted update of the same user.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	seen := &lastSeen{at: make(map[int64]time.Time), pruneAt: minPruneAt}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := UpdateKind(c.Update())
			if kind == "command" {
				kind = "message"
			}
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if seen.allow(user.ID, clock.Now(), opts.Interval) {
				return next(c)
			}

			logger.Warn(tghelpers.BuildContext(c), "tg", "rate_limit",
				slog.String("status", "rate_limited"),
				slog.String("kind", kind),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
