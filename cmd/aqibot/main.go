package main

import (
	"errors"
	"log"

	"github.com/joho/godotenv"

	"github.com/m3rciful/aqibot/core/bootstrap"
	corecmd "github.com/m3rciful/aqibot/core/cmd"
	"github.com/m3rciful/aqibot/internal/app"
	"github.com/m3rciful/aqibot/internal/config"
	"github.com/m3rciful/aqibot/migrations"
)

func main() {
	// .env is optional.
	_ = godotenv.Load()

	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			cfg, err := config.Load(path)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: func(c corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			cfg := c.(*config.Config)
			res, err := bootstrap.Run(bootstrap.Options{
				Config:     cfg.CoreConfig(),
				Database:   cfg.Database,
				Migrations: migrations.FS,
			})
			if err != nil {
				return nil, err
			}
			return assemble(cfg, res, app.New)
		},
	})
	if err != nil {
		log.Fatalf("aqibot: %v", err)
	}
}

// assemble builds the app on top of bootstrapped infrastructure and releases
// that infrastructure when the app cannot be built.
func assemble(cfg *config.Config, res bootstrap.Result, build func(app.Options) (*app.App, error)) (corecmd.TelegramApp, error) {
	a, err := build(app.Options{Config: cfg, DB: res.DB})
	if err != nil {
		return nil, errors.Join(err, res.Close())
	}
	return a, nil
}
