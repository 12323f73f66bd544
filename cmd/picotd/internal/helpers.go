package internal

import (
	"fmt"
	"runtime"

	"github.com/sipeed/picotd/pkg/config"
)

const Logo = "✈"

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

// ConfigPath is set by the root --config flag. Empty means the default
// runtime path.
var ConfigPath string

func GetConfigPath() string {
	if ConfigPath != "" {
		return ConfigPath
	}
	return config.ResolveRuntimePaths().ConfigPath
}

func LoadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(GetConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", GetConfigPath(), err)
	}
	return cfg, nil
}

// FormatVersion returns the version string with optional git commit
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// FormatBuildInfo returns build time and go version info
func FormatBuildInfo() (string, string) {
	build := buildTime
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return build, goVer
}

func GetVersion() string {
	return version
}
