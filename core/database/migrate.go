package database

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/aqibot/core/logger"
)

const previewFiles = 6

// RunMigrations applies the up migrations in the fsys directory named after
// cfg.Driver ("postgres" or "sqlite3"). The migrator is left open because
// closing it would close db.
func RunMigrations(db *sqlx.DB, cfg Config, fsys fs.FS) error {
	if db == nil {
		return errors.New("migrate: nil database")
	}
	files := upFiles(fsys, cfg.Driver)
	preview, more := logger.SummarizeStrings(files, previewFiles)
	logger.MIG.Debug("migrations.resolve",
		slog.String("event", "migrations.resolve"),
		slog.String("driver", cfg.Driver),
		slog.Int("count", len(files)),
		slog.String("files", preview),
		slog.Bool("collapsed", more),
	)

	m, err := newMigrator(db, cfg.Driver, fsys)
	if err != nil {
		logger.MIG.Error("migrations.init", slog.String("event", "migrations.init"), slog.String("err", err.Error()))
		return err
	}

	from, _, _ := m.Version()
	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.MIG.Error("migrations.apply",
			slog.String("event", "migrations.apply"),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
			slog.Duration("duration", time.Since(start)),
		)
		return fmt.Errorf("migration execution failed: %w", err)
	}
	to, _, _ := m.Version()

	applied := between(files, uint64(from), uint64(to))
	preview, more = logger.SummarizeStrings(applied, previewFiles)
	logger.MIG.Info("migrations.apply",
		slog.String("event", "migrations.apply"),
		slog.String("status", "ok"),
		slog.Uint64("from", uint64(from)),
		slog.Uint64("to", uint64(to)),
		slog.Int("count", len(applied)),
		slog.String("files", preview),
		slog.Bool("collapsed", more),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func newMigrator(db *sqlx.DB, driver string, fsys fs.FS) (*migrate.Migrate, error) {
	src, err := iofs.New(fsys, driver)
	if err != nil {
		return nil, fmt.Errorf("open migration source %q: %w", driver, err)
	}
	var target migratedb.Driver
	switch driver {
	case DriverPostgres:
		target, err = postgres.WithInstance(db.DB, &postgres.Config{})
	case DriverSQLite:
		target, err = sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	default:
		return nil, fmt.Errorf("migrate: unsupported driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("%s migration driver: %w", driver, err)
	}
	m, err := migrate.NewWithInstance("iofs", src, driver, target)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}
	m.Log = migrateLog{}
	return m, nil
}

// migrateLog forwards golang-migrate's progress lines to the migration logger.
type migrateLog struct{}

func (migrateLog) Printf(format string, v ...any) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))
	logger.MIG.Debug("migrations.step", slog.String("event", "migrations.step"), slog.String("cause", msg))
}

func (migrateLog) Verbose() bool { return false }

// upFiles lists the *.up.sql names in dir, sorted.
func upFiles(fsys fs.FS, dir string) []string {
	matches, err := fs.Glob(fsys, path.Join(dir, "*.up.sql"))
	if err != nil {
		return nil
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = path.Base(m)
	}
	slices.Sort(names)
	return names
}

// between returns the files whose version v satisfies from < v <= to.
func between(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		prefix, _, _ := strings.Cut(f, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err == nil && v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
