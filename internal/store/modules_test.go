package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveModuleAnnotation_SupersedesPrior(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	require.NoError(t, s.SaveModuleAnnotation("services/auth", "handles login", []string{"a", "b"}))
	require.NoError(t, s.SaveModuleAnnotation("services/auth", "handles login and tokens", []string{"a", "b", "c"}))

	ma, err := s.GetCurrentModuleAnnotation("services/auth")
	require.NoError(t, err)
	require.NotNil(t, ma)
	assert.Equal(t, "handles login and tokens", ma.Summary)
	assert.Equal(t, 3, ma.FunctionCount)
	assert.Equal(t, []string{"a", "b", "c"}, ma.ContentHashes)
}

func TestCheckModuleStaleness_Unannotated(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	st, err := s.CheckModuleStaleness("services/auth", []string{"a"})
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestCheckModuleStaleness_SetMembership(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	require.NoError(t, s.SaveModuleAnnotation("services/auth", "summary", []string{"a", "b", "c"}))

	// Identical set: not stale.
	st, err := s.CheckModuleStaleness("services/auth", []string{"c", "a", "b"})
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.False(t, st.IsStale)
	assert.Empty(t, st.MissingHashes)
	assert.Empty(t, st.NewHashes)

	// One function rewritten: c gone, d appeared.
	st, err = s.CheckModuleStaleness("services/auth", []string{"a", "b", "d"})
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.True(t, st.IsStale)
	assert.Equal(t, []string{"c"}, st.MissingHashes)
	assert.Equal(t, []string{"d"}, st.NewHashes)
	assert.False(t, st.CountChanged)

	// Function removed: count changes too.
	st, err = s.CheckModuleStaleness("services/auth", []string{"a", "b"})
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.True(t, st.IsStale)
	assert.Equal(t, []string{"c"}, st.MissingHashes)
	assert.True(t, st.CountChanged)
}

func TestCurrentModuleAnnotations(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	require.NoError(t, s.SaveModuleAnnotation("services/billing", "billing", []string{"x"}))
	require.NoError(t, s.SaveModuleAnnotation("services/auth", "auth", []string{"y"}))

	all, err := s.CurrentModuleAnnotations()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "services/auth", all[0].ModulePath)
	assert.Equal(t, "services/billing", all[1].ModulePath)
}
