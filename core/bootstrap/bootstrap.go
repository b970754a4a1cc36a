// Package bootstrap prepares process-wide infrastructure before the bot is
// wired: the logger first, then the optional database and its schema.
package bootstrap

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/aqibot/core/config"
	coredatabase "github.com/m3rciful/aqibot/core/database"
	"github.com/m3rciful/aqibot/core/logger"
)

// Options select what Run prepares. The function fields are test seams and
// default to the core implementations.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config
	// Migrations holds driver subdirectories ("postgres", "sqlite3") of *.sql
	// files. Nil skips migrations.
	Migrations fs.FS

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(*sqlx.DB, coredatabase.Config, fs.FS) error
}

// Result is the prepared infrastructure. DB is nil without a database.
type Result struct {
	DB *sqlx.DB
}

// Close releases what Run opened. It is safe on an empty Result.
func (r Result) Close() error {
	if r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

func (o *Options) defaults() {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
	if o.Migrate == nil {
		o.Migrate = coredatabase.RunMigrations
	}
}

// Run initializes the logger and, when Database is enabled, connects and
// migrates. A database that fails to migrate is closed.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}
	opts.defaults()

	if err := opts.LoggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}
	if !opts.Database.Enabled() {
		logger.Info(logger.Background(), "db", "db.disabled")
		return &Result{}, nil
	}

	db, err := opts.Connect(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	if opts.Migrations == nil {
		return &Result{DB: db}, nil
	}
	if err := opts.Migrate(db, opts.Database, opts.Migrations); err != nil {
		return nil, errors.Join(fmt.Errorf("bootstrap: migrations failed: %w", err), db.Close())
	}
	return &Result{DB: db}, nil
}
