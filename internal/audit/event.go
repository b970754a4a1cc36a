// Package audit records bot usage as a best-effort side channel.
// Recording never blocks or fails the conversation that produced the event.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is one usage record.
type Event struct {
	ID        uuid.UUID `db:"id"`
	At        time.Time `db:"created_at"`
	UserID    int64     `db:"user_id"`
	Username  string    `db:"username"`
	FirstName string    `db:"first_name"`
	Action    string    `db:"action"`
	Details   string    `db:"details"`
}

// Sink persists events.
type Sink interface {
	Write(ctx context.Context, e Event) error
}

// ActionCount is one row of a usage summary.
type ActionCount struct {
	Action string `db:"action"`
	Count  int    `db:"n"`
	Users  int    `db:"users"`
}
