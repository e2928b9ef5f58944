package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAnnotation_FirstTime(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	first, err := s.SaveAnnotation("n1", "s1", "parses the config file", "hash1", SourceHuman)
	require.NoError(t, err)
	assert.True(t, first)

	av, err := s.GetCurrentAnnotation("s1")
	require.NoError(t, err)
	require.NotNil(t, av)
	assert.Equal(t, "parses the config file", av.Text)
	assert.Equal(t, "hash1", av.ContentHash)
	assert.Equal(t, SourceHuman, av.Source)
	assert.Nil(t, av.SupersededAt)
}

func TestSaveAnnotation_VersioningInvariant(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	// N saves produce N versions with exactly one current, regardless
	// of N.
	const n = 5
	for i := 0; i < n; i++ {
		first, err := s.SaveAnnotation("n1", "s1", fmt.Sprintf("version %d", i), fmt.Sprintf("hash%d", i), SourceGenerated)
		require.NoError(t, err)
		assert.Equal(t, i == 0, first)
	}

	history, err := s.GetAnnotationHistory("s1")
	require.NoError(t, err)
	require.Len(t, history, n)

	// Newest first, and only the newest is current.
	assert.Equal(t, "version 4", history[0].Text)
	assert.Nil(t, history[0].SupersededAt)
	for i := 1; i < n; i++ {
		assert.NotNil(t, history[i].SupersededAt, "version %d should be superseded", n-1-i)
		require.NotNil(t, history[i].SupersededBy)
		assert.Equal(t, history[i-1].ID, *history[i].SupersededBy)
	}

	cur, err := s.GetCurrentAnnotation("s1")
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, history[0].ID, cur.ID)
}

func TestGetCurrentAnnotation_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	av, err := s.GetCurrentAnnotation("nope")
	require.NoError(t, err)
	assert.Nil(t, av)
}

func TestHasAnnotation(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	has, err := s.HasAnnotation("s1")
	require.NoError(t, err)
	assert.False(t, has)

	_, err = s.SaveAnnotation("n1", "s1", "text", "hash1", SourceHuman)
	require.NoError(t, err)

	has, err = s.HasAnnotation("s1")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestGetStaleAnnotations(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.SaveAnnotation("n1", "s1", "fresh", "hash-a", SourceHuman)
	require.NoError(t, err)
	_, err = s.SaveAnnotation("n2", "s2", "stale", "hash-b", SourceHuman)
	require.NoError(t, err)
	_, err = s.SaveAnnotation("n3", "s3", "node gone", "hash-c", SourceHuman)
	require.NoError(t, err)

	// s1 unchanged, s2 edited, s3 has no live node.
	live := map[string]string{
		"s1": "hash-a",
		"s2": "hash-b2",
	}
	stale, err := s.GetStaleAnnotations(live)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "s2", stale[0].StableID)
}

func TestPurgeAnnotations(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.SaveAnnotation("n1", "s1", "v1", "hash1", SourceHuman)
	require.NoError(t, err)
	_, err = s.SaveAnnotation("n1", "s1", "v2", "hash2", SourceHuman)
	require.NoError(t, err)

	require.NoError(t, s.PurgeAnnotations("s1"))

	history, err := s.GetAnnotationHistory("s1")
	require.NoError(t, err)
	assert.Empty(t, history)
}
