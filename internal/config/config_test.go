package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5*time.Minute, cfg.Cache.FastTTL)
	assert.Equal(t, time.Hour, cfg.Cache.SlowTTL)
	assert.Equal(t, 1000, cfg.Cache.FastMaxItems)
	assert.Equal(t, 5000, cfg.Cache.SlowMaxItems)
	assert.Equal(t, 3, cfg.Scheduler.MaxConcurrent)
	assert.Equal(t, time.Second, cfg.Scheduler.PollInterval)
	assert.Equal(t, time.Second, cfg.Query.SlowThreshold)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "verbose"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Environment = "qa"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Scheduler.MaxConcurrent = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadDefaultsOnly(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("ENVIRONMENT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Development, cfg.Environment)
	assert.Contains(t, cfg.LoadedFrom, "defaults")
	assert.Contains(t, cfg.LoadedFrom, "environment")
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
environment: staging
scheduler:
  max_concurrent: 7
cache:
  fast_max_items: 250
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("ENVIRONMENT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Staging, cfg.Environment)
	assert.Equal(t, 7, cfg.Scheduler.MaxConcurrent)
	assert.Equal(t, 250, cfg.Cache.FastMaxItems)
	// Untouched fields keep their defaults.
	assert.Equal(t, 5000, cfg.Cache.SlowMaxItems)
	assert.Contains(t, cfg.LoadedFrom, path)
}

func TestEnvironmentVariablesOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler:\n  max_concurrent: 7\n"), 0o644))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SCHEDULER_MAX_CONCURRENT", "9")
	t.Setenv("TABLE_NAME", "cryptique-analytics-test")
	t.Setenv("CACHE_FAST_TTL", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Scheduler.MaxConcurrent)
	assert.Equal(t, "cryptique-analytics-test", cfg.Database.TableName)
	assert.Equal(t, 30*time.Second, cfg.Cache.FastTTL)
}

func TestLoadRejectsMissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestGetEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "prod")
	assert.Equal(t, Production, getEnvironment())

	t.Setenv("ENVIRONMENT", "staging")
	assert.Equal(t, Staging, getEnvironment())

	t.Setenv("ENVIRONMENT", "")
	assert.Equal(t, Development, getEnvironment())
}
