package state

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type memoryManager struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	ttl      time.Duration
	sessions map[int64]Session
}

// NewMemoryManager constructs an in-process Manager. A zero ttl disables expiry.
// A nil clock uses the real clock.
func NewMemoryManager(ttl time.Duration, clock clockwork.Clock) Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &memoryManager{
		clock:    clock,
		ttl:      ttl,
		sessions: make(map[int64]Session),
	}
}

// Get returns the session for id, evicting it first when it has expired.
func (m *memoryManager) Get(_ context.Context, id int64) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return Fresh(), nil
	}
	if m.expired(s) {
		delete(m.sessions, id)
		return Fresh(), nil
	}
	return s, nil
}

// Save stores s for id and stamps it with the current time.
// Saving an idle session removes it.
func (m *memoryManager) Save(_ context.Context, id int64, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.Idle() {
		delete(m.sessions, id)
		return nil
	}
	s.UpdatedAt = m.clock.Now()
	m.sessions[id] = s
	return nil
}

// Clear removes the entire session for id.
func (m *memoryManager) Clear(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}

// InProgress reports whether id currently has a live non-idle session.
func (m *memoryManager) InProgress(ctx context.Context, id int64) bool {
	s, _ := m.Get(ctx, id)
	return !s.Idle()
}

func (m *memoryManager) Ping(context.Context) error { return nil }

func (m *memoryManager) expired(s Session) bool {
	return m.ttl > 0 && m.clock.Since(s.UpdatedAt) > m.ttl
}
