package simulate

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picotd/pkg/config"
)

func TestNewSimulateCommand(t *testing.T) {
	cmd := NewSimulateCommand()

	require.NotNil(t, cmd)
	assert.Equal(t, "simulate [message...]", cmd.Use)
	assert.True(t, cmd.HasAlias("sim"))
	assert.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Flags().Lookup("script"))
}

func TestSimulate_DefaultScript(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Simulate(context.Background(), config.DefaultConfig(), DefaultScript, &out))

	got := out.String()
	assert.Contains(t, got, "you> /start\nbot> Hi! Send /help to see what I can do.\n")
	assert.Contains(t, got, "bot> Available commands:")
	assert.Contains(t, got, "bot> hello\n")
	assert.Contains(t, got, "bot> Nice to meet you, Ada. Pick a color:\n     [red] [green] [blue]\n")
	assert.Contains(t, got, "you> [green]\n")
	assert.Contains(t, got, "bot* Thanks!\n")
	assert.Contains(t, got, "bot> Thanks Ada, you picked green.\n")
	assert.Contains(t, got, "bot> Welcome! You were invited with code friend.\n")
	assert.Contains(t, got, "bot> Unknown command /dance. Send /help for the list.\n")
}

func TestSimulate_TapWithoutKeyboard(t *testing.T) {
	var out bytes.Buffer
	err := Simulate(context.Background(), config.DefaultConfig(), []string{"tap 1"}, &out)
	assert.Error(t, err)
}

func TestReadScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.txt")
	require.NoError(t, os.WriteFile(path, []byte("# tour\n/help\n\n  /echo hi  \n"), 0o600))

	lines, err := readScript(nil, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"/help", "/echo hi"}, lines)

	lines, err = readScript(strings.NewReader("/start\ntap 1\n"), "-")
	require.NoError(t, err)
	assert.Equal(t, []string{"/start", "tap 1"}, lines)
}
