package state

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryManager_MissingIsIdle(t *testing.T) {
	m := NewMemoryManager(time.Minute, clockwork.NewFakeClock())
	s, err := m.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, s.State)
	assert.Empty(t, s.Region)
	assert.False(t, m.InProgress(context.Background(), 1))
}

func TestMemoryManager_SaveGetClear(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	m := NewMemoryManager(time.Minute, clock)

	require.NoError(t, m.Save(ctx, 7, Session{State: "choosing_city", Region: "Bukhara"}))
	s, err := m.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, State("choosing_city"), s.State)
	assert.Equal(t, "Bukhara", s.Region)
	assert.Equal(t, clock.Now(), s.UpdatedAt)
	assert.True(t, m.InProgress(ctx, 7))

	other, _ := m.Get(ctx, 8)
	assert.True(t, other.Idle())

	require.NoError(t, m.Clear(ctx, 7))
	assert.False(t, m.InProgress(ctx, 7))
}

func TestMemoryManager_SaveIdleRemoves(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryManager(0, nil).(*memoryManager)

	require.NoError(t, m.Save(ctx, 1, Session{State: "choosing_region"}))
	require.Len(t, m.sessions, 1)
	require.NoError(t, m.Save(ctx, 1, Fresh()))
	assert.Empty(t, m.sessions)
}

func TestMemoryManager_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	m := NewMemoryManager(10*time.Minute, clock)

	require.NoError(t, m.Save(ctx, 1, Session{State: "choosing_region"}))
	clock.Advance(9 * time.Minute)
	assert.True(t, m.InProgress(ctx, 1))

	// Save refreshes the stamp.
	require.NoError(t, m.Save(ctx, 1, Session{State: "choosing_city", Region: "Navoiy"}))
	clock.Advance(9 * time.Minute)
	assert.True(t, m.InProgress(ctx, 1))

	clock.Advance(2 * time.Minute)
	s, err := m.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, s.Idle())
	assert.Empty(t, s.Region)
	assert.Empty(t, m.(*memoryManager).sessions)
}
