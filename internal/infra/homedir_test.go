package infra

import (
	"path/filepath"
	"testing"
)

func TestResolveHomeDir(t *testing.T) {
	t.Setenv("HOME", "/tmp/home")
	t.Setenv(EnvHome, "")

	if got, want := ResolveHomeDir(), filepath.Join("/tmp/home", ".picotd"); got != want {
		t.Fatalf("ResolveHomeDir() = %q, want %q", got, want)
	}

	t.Setenv(EnvHome, "  /srv/picotd  ")
	if got := ResolveHomeDir(); got != "/srv/picotd" {
		t.Fatalf("ResolveHomeDir() = %q, want %q", got, "/srv/picotd")
	}
}
