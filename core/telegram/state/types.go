package state

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by backends when no live session exists for an id.
var ErrNotFound = errors.New("state: session not found")

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// Session is the mutable dialog state of one conversation.
type Session struct {
	State     State     `json:"state"`
	Region    string    `json:"region,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Idle reports whether the session carries no active flow.
func (s Session) Idle() bool {
	return s.State == "" || s.State == StateIdle
}

// Manager owns conversation sessions.
// Get never fails for a missing or expired session: it returns a fresh idle one.
type Manager interface {
	Get(ctx context.Context, id int64) (Session, error)
	Save(ctx context.Context, id int64, s Session) error
	Clear(ctx context.Context, id int64) error
	InProgress(ctx context.Context, id int64) bool
	Ping(ctx context.Context) error
}

// Fresh returns the session a new conversation starts with.
func Fresh() Session {
	return Session{State: StateIdle}
}
