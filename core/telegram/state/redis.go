package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "aqibot:session:"

// RedisOptions configures the redis-backed Manager.
type RedisOptions struct {
	Prefix string
	TTL    time.Duration
	Clock  clockwork.Clock
}

type redisManager struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
	clock  clockwork.Clock
}

// NewRedisManager stores sessions as JSON values with a key TTL, so several
// bot replicas can share conversations.
func NewRedisManager(rdb redis.UniversalClient, opts RedisOptions) Manager {
	if opts.Prefix == "" {
		opts.Prefix = defaultKeyPrefix
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &redisManager{rdb: rdb, prefix: opts.Prefix, ttl: opts.TTL, clock: opts.Clock}
}

func (r *redisManager) key(id int64) string {
	return r.prefix + strconv.FormatInt(id, 10)
}

func (r *redisManager) Get(ctx context.Context, id int64) (Session, error) {
	s, err := r.load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Fresh(), nil
	}
	if err != nil {
		return Fresh(), err
	}
	return s, nil
}

func (r *redisManager) load(ctx context.Context, id int64) (Session, error) {
	raw, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("state: redis get: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("state: decode session %d: %w", id, err)
	}
	return s, nil
}

func (r *redisManager) Save(ctx context.Context, id int64, s Session) error {
	if s.Idle() {
		return r.Clear(ctx, id)
	}
	s.UpdatedAt = r.clock.Now().UTC()
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("state: encode session %d: %w", id, err)
	}
	if err := r.rdb.Set(ctx, r.key(id), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("state: redis set: %w", err)
	}
	return nil
}

func (r *redisManager) Clear(ctx context.Context, id int64) error {
	if err := r.rdb.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("state: redis del: %w", err)
	}
	return nil
}

func (r *redisManager) InProgress(ctx context.Context, id int64) bool {
	s, err := r.Get(ctx, id)
	return err == nil && !s.Idle()
}

func (r *redisManager) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}
