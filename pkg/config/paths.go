package config

import (
	"os"
	"path/filepath"
	"strings"
)

// DataDir returns the directory roleforge stores its state in.
//
// Priority:
//  1. ROLEFORGE_DATA_DIR environment variable (if set and non-empty)
//  2. ~/.roleforge (default)
//
// The returned path is always absolute. Tilde (~) is expanded to the
// user's home directory; relative paths are made absolute against the
// current working directory.
//
// This reads directly from os.Getenv rather than through viper, since
// it is used to locate the config file itself before viper is set up.
func DataDir() string {
	if dataDir := os.Getenv("ROLEFORGE_DATA_DIR"); dataDir != "" {
		return expandPath(dataDir)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".roleforge"
	}
	return filepath.Join(homeDir, ".roleforge")
}

// SandboxDir returns the directory agent-initiated shell/tool execution
// runs in, separate from DataDir's internal state.
//
// Priority:
//  1. ROLEFORGE_SANDBOX_DIR environment variable
//  2. DataDir()
func SandboxDir() string {
	if sandboxDir := os.Getenv("ROLEFORGE_SANDBOX_DIR"); sandboxDir != "" {
		return expandPath(sandboxDir)
	}
	return DataDir()
}

// SubDir returns a named subdirectory of DataDir, e.g. SubDir("agents").
func SubDir(name string) string {
	return filepath.Join(DataDir(), name)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}
