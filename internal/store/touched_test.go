package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTouchedQueue_Lifecycle(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	require.NoError(t, s.MarkTouched("s1", "auth/login.py", nil))
	require.NoError(t, s.MarkTouched("s2", "auth/token.py", nil))

	queue, err := s.TouchedQueue()
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, "s1", queue[0].StableID)

	ok, err := s.ClearTouched("s1")
	require.NoError(t, err)
	assert.True(t, ok)

	queue, err = s.TouchedQueue()
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, "s2", queue[0].StableID)

	// A fresh edit re-opens a cleared entry.
	require.NoError(t, s.MarkTouched("s1", "auth/login.py", nil))
	queue, err = s.TouchedQueue()
	require.NoError(t, err)
	assert.Len(t, queue, 2)
}

func TestClearTouched_Unknown(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	ok, err := s.ClearTouched("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveTouched(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	require.NoError(t, s.MarkTouched("s1", "auth/login.py", nil))
	require.NoError(t, s.RemoveTouched("s1"))

	queue, err := s.TouchedQueue()
	require.NoError(t, err)
	assert.Empty(t, queue)
}
