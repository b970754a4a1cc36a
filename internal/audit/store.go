package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const maxFieldLen = 255

// Store writes events to the usage_log table.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps an open database that already carries the usage_log schema.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Write inserts one event.
func (s *Store) Write(ctx context.Context, e Event) error {
	q := s.db.Rebind(`INSERT INTO usage_log (id, user_id, username, first_name, action, details, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, q,
		e.ID.String(),
		e.UserID,
		nullable(e.Username),
		nullable(e.FirstName),
		truncate(e.Action, 100),
		nullable(e.Details),
		e.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("audit: insert usage_log: %w", err)
	}
	return nil
}

// Summary counts events per action since the given time, most frequent first.
func (s *Store) Summary(ctx context.Context, since time.Time) ([]ActionCount, error) {
	q := s.db.Rebind(`SELECT action, COUNT(*) AS n, COUNT(DISTINCT user_id) AS users
FROM usage_log
WHERE created_at >= ?
GROUP BY action
ORDER BY n DESC, action ASC`)
	var out []ActionCount
	if err := s.db.SelectContext(ctx, &out, q, since.UTC()); err != nil {
		return nil, fmt.Errorf("audit: summary: %w", err)
	}
	return out, nil
}

// Ping checks the underlying database.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func nullable(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: truncate(v, maxFieldLen), Valid: true}
}

func truncate(v string, n int) string {
	r := []rune(v)
	if len(r) <= n {
		return v
	}
	return string(r[:n])
}
