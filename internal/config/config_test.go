package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithNoFileOrEnv(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "epistemic-core", cfg.Server.Name)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 10, cfg.Scheduler.MinSamples)
	assert.False(t, cfg.Cron.Enabled)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("EPISTEMIC_LOG_LEVEL", "debug")
	t.Setenv("EPISTEMIC_CRON_ENABLED", "true")
	t.Setenv("EPISTEMIC_SCHEDULER_MIN_SAMPLES", "25")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Cron.Enabled)
	assert.Equal(t, 25, cfg.Scheduler.MinSamples)
}

func TestLoad_FileValuesLayerUnderEnv(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/epistemic.toml"
	require.NoError(t, os.WriteFile(path, []byte(`
[log]
level = "warn"

[scheduler]
min_samples = 50
`), 0o644))
	t.Setenv("EPISTEMIC_LOG_LEVEL", "error")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level, "env must win over file")
	assert.Equal(t, 50, cfg.Scheduler.MinSamples, "file value used where env unset")
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		_ = os.Chdir(orig)
	})
}

func TestValidate_RejectsInvalidLogLevel(t *testing.T) {
	c := &Config{Log: LogConfig{Level: "verbose"}}
	err := c.Validate()
	require.Error(t, err)
}
