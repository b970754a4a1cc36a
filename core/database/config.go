package database

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// DriverPostgres selects PostgreSQL via lib/pq.
	DriverPostgres = "postgres"
	// DriverSQLite selects SQLite via mattn/go-sqlite3.
	DriverSQLite = "sqlite3"
)

// Config holds database connection settings shared across bots.
// An empty Driver and URL means no database is configured.
type Config struct {
	Driver         string `yaml:"driver" envconfig:"DB_DRIVER"`
	URL            string `yaml:"url" envconfig:"DATABASE_URL"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// Normalize infers the driver from URL when missing and validates it.
func (c *Config) Normalize() error {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	c.URL = strings.TrimSpace(c.URL)
	if c.Driver == "" && c.URL != "" {
		c.Driver = driverFromURL(c.URL)
	}
	if c.Driver == "" && strings.TrimSpace(c.Host) != "" {
		c.Driver = DriverPostgres
	}
	if c.Driver == "sqlite" {
		c.Driver = DriverSQLite
	}
	switch c.Driver {
	case "", DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("database: unsupported driver %q; allowed: postgres, sqlite3", c.Driver)
	}
	if c.Driver == DriverSQLite && c.URL == "" {
		return fmt.Errorf("database: url is required for sqlite3")
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = 5
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	return nil
}

// Enabled reports whether a database is configured.
func (c Config) Enabled() bool {
	return c.Driver != ""
}

// DSN returns the driver-specific connection string.
func (c Config) DSN() string {
	if c.Driver == DriverSQLite {
		return strings.TrimPrefix(strings.TrimPrefix(c.URL, "sqlite3://"), "sqlite://")
	}
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// Target describes the database for logs without credentials.
func (c Config) Target() string {
	if c.Driver == DriverSQLite {
		return c.DSN()
	}
	u, err := url.Parse(c.DSN())
	if err != nil {
		return c.Driver
	}
	return u.Host + u.Path
}

func driverFromURL(raw string) string {
	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DriverPostgres
	case strings.HasPrefix(lower, "sqlite"), strings.HasPrefix(lower, "file:"), strings.HasSuffix(lower, ".db"):
		return DriverSQLite
	}
	return ""
}
