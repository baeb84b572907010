package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	// when
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	// then
	require.NoError(t, err)
	assert.Equal(t, 8181, cfg.Port)
	assert.Equal(t, "bulk", cfg.Sync.Mode)
	assert.Equal(t, 500, cfg.Grid.BlankRows)
	assert.Equal(t, float64(10_000), cfg.Grid.HoursMax)
	assert.Equal(t, "#fff2cc", cfg.Grid.StatusStyles["Planned"].Background)
	assert.Empty(t, cfg.Upstream.BaseUrl)
	assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout())
	assert.False(t, cfg.Validation.StrictReferences)
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	// given
	path := filepath.Join(t.TempDir(), "application.yaml")
	yaml := `
port: 9090
sync:
  mode: per-record
grid:
  blankrows: 20
  statusstyles:
    Closed:
      background: "#cccccc"
      color: "#000000"
validation:
  requirepositivebudget: true
db:
  host: db.internal
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("BUDGETGRID_DB_HOST", "db.override")
	t.Setenv("BUDGETGRID_UPSTREAM_BASEURL", "http://backend:8080/api")
	t.Setenv("BUDGETGRID_UPSTREAM_TIMEOUTSECONDS", "5")

	// when
	cfg, err := Load(path)

	// then
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "per-record", cfg.Sync.Mode)
	assert.Equal(t, 20, cfg.Grid.BlankRows)
	assert.Equal(t, "#cccccc", cfg.Grid.StatusStyles["Closed"].Background)
	assert.Equal(t, "#d9ead3", cfg.Grid.StatusStyles["Approved"].Background)
	assert.True(t, cfg.Validation.RequirePositiveBudget)
	assert.Equal(t, "db.override", cfg.Database.Host)
	assert.Equal(t, "http://backend:8080/api", cfg.Upstream.BaseUrl)
	assert.Equal(t, 5*time.Second, cfg.Upstream.Timeout())
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "application.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [unclosed"), 0o600))

	_, err := Load(path)

	assert.Error(t, err)
}
