package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/m3rciful/aqibot/core/logger"
)

const (
	// PostgreSQL often starts alongside the bot; keep trying this long.
	postgresStartup = 30 * time.Second
	pingTimeout     = 5 * time.Second
	retryEvery      = 2 * time.Second
)

// Connect opens cfg's database, sizes the pool and verifies connectivity.
// PostgreSQL is retried until it accepts connections or postgresStartup elapses.
func Connect(cfg Config) (*sqlx.DB, error) {
	if !cfg.Enabled() {
		return nil, errors.New("db connect: no driver configured")
	}
	budget := pingTimeout
	if cfg.Driver == DriverPostgres {
		budget = postgresStartup
	}
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	start := time.Now()
	db, attempts, err := dial(ctx, cfg)
	attrs := []slog.Attr{
		slog.String("driver", cfg.Driver),
		slog.String("db", cfg.Target()),
		slog.Int("attempts", attempts),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		logger.Error(ctx, "db", "db.connect", append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))...)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	pool := cfg.MaxConnections
	if cfg.Driver == DriverSQLite {
		// One writer at a time; a single connection also keeps :memory: shared.
		pool = 1
	}
	db.SetMaxOpenConns(pool)
	db.SetMaxIdleConns(pool)
	logger.Info(ctx, "db", "db.connect", append(attrs, slog.String("status", "ok"), slog.Int("count", pool))...)
	return db, nil
}

func dial(ctx context.Context, cfg Config) (*sqlx.DB, int, error) {
	for attempt := 1; ; attempt++ {
		db, err := sqlx.ConnectContext(ctx, cfg.Driver, cfg.DSN())
		if err == nil {
			return db, attempt, nil
		}
		if cfg.Driver != DriverPostgres {
			return nil, attempt, err
		}
		logger.Debug(ctx, "db", "db.connect.retry", slog.Int("attempts", attempt), slog.String("err", err.Error()))
		select {
		case <-ctx.Done():
			return nil, attempt, fmt.Errorf("database not ready: %w", err)
		case <-time.After(retryEvery):
		}
	}
}
