package app

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coredatabase "github.com/m3rciful/aqibot/core/database"
	coretelegram "github.com/m3rciful/aqibot/core/telegram"
	"github.com/m3rciful/aqibot/core/telegram/state"
	"github.com/m3rciful/aqibot/internal/config"
	"github.com/m3rciful/aqibot/internal/observability"
	"github.com/m3rciful/aqibot/migrations"
)

func testConfig(t *testing.T, mutate func(*config.Config)) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Telegram.Token = "123:abc"
	cfg.AirVisual.APIKey = "iq-key"
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Normalize())
	return cfg
}

func TestNewMemorySessionsWithoutDatabase(t *testing.T) {
	a, err := New(Options{Config: testConfig(t, nil), Metrics: observability.NewMetricsForTesting()})
	require.NoError(t, err)

	assert.Nil(t, a.rdb)
	assert.Nil(t, a.ops)
	require.Len(t, a.readiness(), 1)

	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)
	assert.NotNil(t, opts.Sequencer)
	assert.NotEmpty(t, opts.Routes)
	assert.NotEmpty(t, opts.Middlewares)
	_, _, ok := opts.Registry.LookupCommand("/start")
	assert.True(t, ok)

	require.NoError(t, a.Close(context.Background()))
}

func TestNewRedisSessions(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, func(c *config.Config) {
		c.Session.Backend = config.SessionRedis
		c.Session.RedisAddr = mr.Addr()
	})
	a, err := New(Options{Config: cfg, Metrics: observability.NewMetricsForTesting()})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, a.sessions.Save(ctx, 5, state.Session{State: "choosing_region"}))
	assert.True(t, a.sessions.InProgress(ctx, 5))
	assert.Len(t, mr.Keys(), 1)

	require.NoError(t, a.Close(ctx))
}

func TestNewUsesProvidedRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := testConfig(t, func(c *config.Config) {
		c.Session.RedisAddr = "unused:6379"
	})
	a, err := New(Options{Config: cfg, Redis: rdb, Metrics: observability.NewMetricsForTesting()})
	require.NoError(t, err)
	assert.Same(t, rdb, a.rdb)
	require.NoError(t, a.sessions.Ping(context.Background()))
	require.NoError(t, a.Close(context.Background()))
}

func openSQLite(t *testing.T) *sqlx.DB {
	t.Helper()
	dbCfg := coredatabase.Config{Driver: coredatabase.DriverSQLite, URL: ":memory:"}
	require.NoError(t, dbCfg.Normalize())
	db, err := coredatabase.Connect(dbCfg)
	require.NoError(t, err)
	require.NoError(t, coredatabase.RunMigrations(db, dbCfg, migrations.FS))
	return db
}

func TestNewWithDatabaseAndOps(t *testing.T) {
	db := openSQLite(t)
	cfg := testConfig(t, func(c *config.Config) {
		c.Ops.Listen = "127.0.0.1:0"
	})
	a, err := New(Options{Config: cfg, DB: db, Metrics: observability.NewMetricsForTesting()})
	require.NoError(t, err)
	require.NotNil(t, a.ops)
	assert.Len(t, a.readiness(), 2)

	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)
	require.NoError(t, opts.OnStart(context.Background(), coretelegram.Runtime{}))
	require.NoError(t, opts.OnStop(context.Background(), coretelegram.Runtime{}))
	assert.Error(t, db.Ping())
}

func TestNewRejectsBadCatalog(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) {
		c.Catalog.Path = t.TempDir() + "/missing.yaml"
	})
	_, err := New(Options{Config: cfg, Metrics: observability.NewMetricsForTesting()})
	assert.Error(t, err)
}
