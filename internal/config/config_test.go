package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/vex/internal/config"
)

func TestLoadWithNoFileAndNoEnvReturnsDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadOverlaysYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vex.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stackMax: 4096\nlogGC: true\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.StackMax)
	assert.True(t, cfg.LogGC)
	// fields the file didn't mention keep their Default() value.
	assert.Equal(t, config.Default().FramesMax, cfg.FramesMax)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadEnvVarOverridesYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vex.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stackMax: 4096\n"), 0o600))

	t.Setenv("VEX_STACK_MAX", "9000")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.StackMax)
}

func TestLoadEnvVarAloneOverridesDefault(t *testing.T) {
	t.Setenv("VEX_STRESS_GC", "true")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.True(t, cfg.StressGC)
}
