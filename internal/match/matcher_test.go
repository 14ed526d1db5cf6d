package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faceguard/internal/embedding"
)

func TestMatcher(t *testing.T) {
	m := New(0.6)

	t.Run("self match passes with zero distance", func(t *testing.T) {
		v := embedding.Vector{0.1, 0.9, -0.4}
		result, err := m.Match(v, v)
		require.NoError(t, err)
		assert.True(t, result.Passed)
		assert.InDelta(t, 0, result.Distance, 1e-12)
	})

	t.Run("distant embedding fails", func(t *testing.T) {
		result, err := m.Match(embedding.Vector{1, 0}, embedding.Vector{-1, 0.1})
		require.NoError(t, err)
		assert.False(t, result.Passed)
		assert.Greater(t, result.Distance, 0.6)
	})

	t.Run("distance exactly at threshold passes", func(t *testing.T) {
		// Orthogonal vectors have distance 1.0.
		exact := New(1.0)
		result, err := exact.Match(embedding.Vector{1, 0}, embedding.Vector{0, 1})
		require.NoError(t, err)
		assert.True(t, result.Passed)
	})

	t.Run("zero vector is an error, not a low distance", func(t *testing.T) {
		_, err := m.Match(embedding.Vector{0, 0}, embedding.Vector{1, 0})
		assert.ErrorIs(t, err, embedding.ErrZeroVector)
	})
}
