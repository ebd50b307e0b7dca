package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ROLEFORGE_DATA_DIR", dir)

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, s.MaxContextTokens)
	assert.Equal(t, 6, s.MaxWorkers)
	assert.Equal(t, 0.7, s.QualityGateThreshold)
	assert.Equal(t, 0.6, s.MinConnectivityThreshold)
	assert.Equal(t, 180*time.Second, s.WorkerTimeout)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ROLEFORGE_DATA_DIR", dir)

	content := "max_workers: 12\nquality_gate_threshold: 0.9\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 12, s.MaxWorkers)
	assert.Equal(t, 0.9, s.QualityGateThreshold)
	assert.Equal(t, 8000, s.MaxContextTokens) // unset keys still default
}

func TestLoadFromEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ROLEFORGE_DATA_DIR", dir)
	t.Setenv("ROLEFORGE_MAX_WORKERS", "3")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("max_workers: 12\n"), 0o644))

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, s.MaxWorkers)
}
