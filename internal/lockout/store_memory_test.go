package lockout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("missing identity returns nil without error", func(t *testing.T) {
		store := NewInMemoryStore()
		state, err := store.Get(ctx, "unknown")
		require.NoError(t, err)
		assert.Nil(t, state)
	})

	t.Run("increment creates then counts", func(t *testing.T) {
		store := NewInMemoryStore()

		state, err := store.Increment(ctx, "rob", now, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 1, state.FailureCount)
		assert.Equal(t, now, state.WindowStartedAt)

		state, err = store.Increment(ctx, "rob", now.Add(time.Second), time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 2, state.FailureCount)
		assert.Equal(t, now, state.WindowStartedAt, "window start is sticky within the window")
	})

	t.Run("increment past the window restarts", func(t *testing.T) {
		store := NewInMemoryStore()
		_, err := store.Increment(ctx, "rob", now, time.Minute)
		require.NoError(t, err)

		later := now.Add(2 * time.Minute)
		state, err := store.Increment(ctx, "rob", later, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 1, state.FailureCount)
		assert.Equal(t, later, state.WindowStartedAt)
	})

	t.Run("lock and clear", func(t *testing.T) {
		store := NewInMemoryStore()
		_, err := store.Increment(ctx, "rob", now, time.Minute)
		require.NoError(t, err)

		until := now.Add(time.Minute)
		require.NoError(t, store.Lock(ctx, "rob", until))

		state, err := store.Get(ctx, "rob")
		require.NoError(t, err)
		require.NotNil(t, state.LockedUntil)
		assert.True(t, state.IsLockedAt(now))
		assert.False(t, state.IsLockedAt(until))

		require.NoError(t, store.Clear(ctx, "rob"))
		state, err = store.Get(ctx, "rob")
		require.NoError(t, err)
		assert.Nil(t, state)
	})

	t.Run("returned state is a copy", func(t *testing.T) {
		store := NewInMemoryStore()
		state, err := store.Increment(ctx, "rob", now, time.Minute)
		require.NoError(t, err)
		state.FailureCount = 99

		stored, err := store.Get(ctx, "rob")
		require.NoError(t, err)
		assert.Equal(t, 1, stored.FailureCount)
	})

	t.Run("colliding key characters are escaped", func(t *testing.T) {
		store := NewInMemoryStore()
		_, err := store.Increment(ctx, "a:b", now, time.Minute)
		require.NoError(t, err)
		state, err := store.Get(ctx, "a_b")
		require.NoError(t, err)
		require.NotNil(t, state, "sanitized keys share a bucket by design")
	})
}
