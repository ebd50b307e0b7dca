package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataDir(t *testing.T) {
	originalEnv := os.Getenv("ROLEFORGE_DATA_DIR")
	defer func() {
		if originalEnv != "" {
			_ = os.Setenv("ROLEFORGE_DATA_DIR", originalEnv)
		} else {
			_ = os.Unsetenv("ROLEFORGE_DATA_DIR")
		}
	}()

	t.Run("default to ~/.roleforge", func(t *testing.T) {
		_ = os.Unsetenv("ROLEFORGE_DATA_DIR")

		homeDir, err := os.UserHomeDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(homeDir, ".roleforge"), DataDir())
	})

	t.Run("use ROLEFORGE_DATA_DIR when set", func(t *testing.T) {
		customDir := "/custom/roleforge/data"
		_ = os.Setenv("ROLEFORGE_DATA_DIR", customDir)
		assert.Equal(t, customDir, DataDir())
	})

	t.Run("expand ~ in ROLEFORGE_DATA_DIR", func(t *testing.T) {
		_ = os.Setenv("ROLEFORGE_DATA_DIR", "~/custom/.roleforge")

		homeDir, err := os.UserHomeDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(homeDir, "custom", ".roleforge"), DataDir())
	})

	t.Run("make relative path absolute", func(t *testing.T) {
		_ = os.Setenv("ROLEFORGE_DATA_DIR", "relative/path")

		dataDir := DataDir()
		assert.True(t, filepath.IsAbs(dataDir))
		assert.True(t, strings.HasSuffix(dataDir, "relative/path") || strings.HasSuffix(dataDir, "relative\\path"))
	})
}

func TestSubDir(t *testing.T) {
	originalEnv := os.Getenv("ROLEFORGE_DATA_DIR")
	defer func() {
		if originalEnv != "" {
			_ = os.Setenv("ROLEFORGE_DATA_DIR", originalEnv)
		} else {
			_ = os.Unsetenv("ROLEFORGE_DATA_DIR")
		}
	}()

	t.Run("return subdirectory path", func(t *testing.T) {
		_ = os.Unsetenv("ROLEFORGE_DATA_DIR")

		homeDir, err := os.UserHomeDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(homeDir, ".roleforge", "agents"), SubDir("agents"))
	})

	t.Run("respect ROLEFORGE_DATA_DIR for subdirectories", func(t *testing.T) {
		customDir := "/custom/roleforge"
		_ = os.Setenv("ROLEFORGE_DATA_DIR", customDir)
		assert.Equal(t, filepath.Join(customDir, "patterns"), SubDir("patterns"))
	})
}

func TestExpandPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "expand tilde", input: "~/test/path", expected: filepath.Join(homeDir, "test", "path")},
		{name: "absolute path unchanged", input: "/absolute/path", expected: "/absolute/path"},
		{name: "relative path made absolute", input: "relative/path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandPath(tt.input)
			if tt.name == "relative path made absolute" {
				assert.True(t, filepath.IsAbs(result))
				assert.True(t, strings.HasSuffix(result, "relative/path") || strings.HasSuffix(result, "relative\\path"))
			} else {
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}
