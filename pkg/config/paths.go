package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sipeed/picotd/internal/infra"
)

const EnvPicotdConfig = "PICOTD_CONFIG"

type RuntimePaths struct {
	HomeDir    string
	ConfigPath string
}

// ResolveRuntimePaths honours PICOTD_CONFIG, then PICOTD_HOME, then ~/.picotd.
func ResolveRuntimePaths() RuntimePaths {
	if configPath := expandHome(strings.TrimSpace(os.Getenv(EnvPicotdConfig))); configPath != "" {
		return RuntimePaths{HomeDir: filepath.Dir(configPath), ConfigPath: configPath}
	}

	homeDir := expandHome(infra.ResolveHomeDir())
	return RuntimePaths{HomeDir: homeDir, ConfigPath: filepath.Join(homeDir, "config.json")}
}
