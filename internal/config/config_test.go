package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 500*time.Millisecond, cfg.Debounce())
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "vigil.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
root: /srv/app
debounce_ms: 200
ignore:
  - "**/generated/**"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/app", cfg.Root)
	assert.Equal(t, 200*time.Millisecond, cfg.Debounce())
	assert.Equal(t, []string{"**/generated/**"}, cfg.Ignore)
	// Unset keys keep defaults.
	assert.Equal(t, "vigil.db", cfg.DBPath)
	assert.Equal(t, 500, cfg.MaxHistory)
}

func TestLoad_Missing(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate_Rejects(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.DebounceMs = -1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.MaxHistory = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Include = []string{"[bad"}
	assert.Error(t, cfg.Validate())
}

func TestTracked(t *testing.T) {
	t.Parallel()
	cfg := Default()

	assert.True(t, cfg.Tracked("services/auth/login.py"))
	assert.True(t, cfg.Tracked("main.go"))
	assert.False(t, cfg.Tracked("README.md"))
	assert.False(t, cfg.Tracked("node_modules/lodash/index.js"))
	assert.False(t, cfg.Tracked(".git/hooks/pre-commit"))
}
