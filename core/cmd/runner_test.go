package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/aqibot/core/config"
	coretelegram "github.com/m3rciful/aqibot/core/telegram"
)

type carrier struct{ cfg *coreconfig.Config }

func (c carrier) CoreConfig() *coreconfig.Config { return c.cfg }

type fakeApp struct {
	opts coretelegram.RunOptions
	err  error
}

func (a fakeApp) TelegramRunOptions() (coretelegram.RunOptions, error) { return a.opts, a.err }

func testOptions(app fakeApp, run func(context.Context, coretelegram.RunOptions) error) Options {
	return Options{
		ConfigEnvVar:      "AQIBOT_TEST_CONFIG",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(string) (ConfigCarrier, error) {
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return app, nil },
		ShutdownLogger: func() error { return nil },
		RunTelegram:    run,
		Context: func() (context.Context, context.CancelFunc) {
			return context.WithCancel(context.Background())
		},
	}
}

func TestRunChainsLifecycleHooks(t *testing.T) {
	var order []string
	app := fakeApp{opts: coretelegram.RunOptions{
		OnStart: func(context.Context, coretelegram.Runtime) error { order = append(order, "start"); return nil },
		OnStop:  func(context.Context, coretelegram.Runtime) error { order = append(order, "stop"); return nil },
	}}
	shutdown := 0
	opts := testOptions(app, func(ctx context.Context, ro coretelegram.RunOptions) error {
		require.NoError(t, ro.OnStart(ctx, coretelegram.Runtime{}))
		require.NoError(t, ro.OnStop(ctx, coretelegram.Runtime{}))
		return nil
	})
	opts.ShutdownLogger = func() error { shutdown++; return nil }

	require.NoError(t, Run(opts))
	assert.Equal(t, []string{"start", "stop"}, order)
	assert.Equal(t, 1, shutdown)
}

func TestRunConfigPath(t *testing.T) {
	var got string
	opts := testOptions(fakeApp{}, func(context.Context, coretelegram.RunOptions) error { return nil })
	opts.LoadConfig = func(path string) (ConfigCarrier, error) {
		got = path
		return carrier{cfg: &coreconfig.Config{}}, nil
	}

	require.NoError(t, Run(opts))
	assert.Equal(t, "config.yaml", got)

	t.Setenv("AQIBOT_TEST_CONFIG", "/etc/aqibot.yaml")
	require.NoError(t, Run(opts))
	assert.Equal(t, "/etc/aqibot.yaml", got)
}

func TestRunErrors(t *testing.T) {
	boom := errors.New("boom")
	noop := func(context.Context, coretelegram.RunOptions) error { return nil }

	assert.Error(t, Run(Options{}))

	opts := testOptions(fakeApp{}, noop)
	opts.LoadConfig = func(string) (ConfigCarrier, error) { return nil, boom }
	assert.ErrorIs(t, Run(opts), boom)

	opts = testOptions(fakeApp{}, noop)
	opts.LoadConfig = func(string) (ConfigCarrier, error) { return carrier{}, nil }
	assert.ErrorContains(t, Run(opts), "missing core configuration")

	opts = testOptions(fakeApp{}, noop)
	opts.Bootstrap = func(ConfigCarrier) (TelegramApp, error) { return nil, boom }
	assert.ErrorIs(t, Run(opts), boom)

	opts = testOptions(fakeApp{err: boom}, noop)
	assert.ErrorIs(t, Run(opts), boom)

	opts = testOptions(fakeApp{}, func(context.Context, coretelegram.RunOptions) error { return boom })
	assert.ErrorIs(t, Run(opts), boom)
}

func TestRunStartHookError(t *testing.T) {
	boom := errors.New("ops listen failed")
	app := fakeApp{opts: coretelegram.RunOptions{
		OnStart: func(context.Context, coretelegram.Runtime) error { return boom },
	}}
	opts := testOptions(app, func(ctx context.Context, ro coretelegram.RunOptions) error {
		return ro.OnStart(ctx, coretelegram.Runtime{})
	})
	assert.ErrorIs(t, Run(opts), boom)
}
