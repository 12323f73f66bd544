package infra

import (
	"os"
	"path/filepath"
	"strings"
)

const EnvHome = "PICOTD_HOME"

// ResolveHomeDir returns the effective home directory for picotd.
// It checks the PICOTD_HOME environment variable first,
// falls back to ~/.picotd if not set or empty.
func ResolveHomeDir() string {
	if envHome := strings.TrimSpace(os.Getenv(EnvHome)); envHome != "" {
		return envHome
	}
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		// Extreme fallback
		return filepath.Join(os.TempDir(), ".picotd")
	}
	return filepath.Join(home, ".picotd")
}
