package internal

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestGetConfigPath(t *testing.T) {
	t.Setenv("HOME", "/tmp/home")
	t.Setenv("PICOTD_HOME", "")
	t.Setenv("PICOTD_CONFIG", "")

	got := GetConfigPath()
	want := filepath.Join("/tmp/home", ".picotd", "config.json")

	if got != want {
		t.Fatalf("GetConfigPath() = %q, want %q", got, want)
	}
}

func TestGetConfigPath_FlagWins(t *testing.T) {
	t.Setenv("PICOTD_CONFIG", "/etc/picotd/env.yaml")
	old := ConfigPath
	t.Cleanup(func() { ConfigPath = old })

	ConfigPath = "/etc/picotd/flag.yaml"
	if got := GetConfigPath(); got != ConfigPath {
		t.Fatalf("GetConfigPath() = %q, want %q", got, ConfigPath)
	}
}

func TestLoadConfig_ReportsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	old := ConfigPath
	t.Cleanup(func() { ConfigPath = old })
	ConfigPath = path

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("LoadConfig() error = nil, want parse error")
	}
}

func TestFormatVersion_NoGitCommit(t *testing.T) {
	oldVersion, oldGit := version, gitCommit

	t.Cleanup(func() {
		version, gitCommit = oldVersion, oldGit
	})

	version = "1.2.3"
	gitCommit = ""

	got := FormatVersion()
	want := "1.2.3"

	if got != want {
		t.Fatalf("FormatVersion() = %q, want %q", got, want)
	}
}

func TestFormatVersion_WithGitCommit(t *testing.T) {
	oldVersion, oldGit := version, gitCommit

	t.Cleanup(func() {
		version, gitCommit = oldVersion, oldGit
	})

	version = "1.2.3"
	gitCommit = "abc123"

	got := FormatVersion()
	want := "1.2.3 (git: abc123)"

	if got != want {
		t.Fatalf("FormatVersion() = %q, want %q", got, want)
	}
}

func TestFormatBuildInfo_EmptyGoVersion_FallsBackToRuntimeVersion(t *testing.T) {
	oldBuildTime, oldGoVersion := buildTime, goVersion

	t.Cleanup(func() {
		buildTime, goVersion = oldBuildTime, oldGoVersion
	})

	buildTime = "x"
	goVersion = ""

	build, goVer := FormatBuildInfo()
	if build != "x" {
		t.Fatalf("FormatBuildInfo().build = %q, want %q", build, "x")
	}

	if goVer != runtime.Version() {
		t.Fatalf("FormatBuildInfo().goVer = %q, want runtime.Version()=%q", goVer, runtime.Version())
	}
}
