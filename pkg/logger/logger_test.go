package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })
	return &buf
}

func TestLogMessageFieldsAndComponent(t *testing.T) {
	buf := capture(t)
	SetLevel(DEBUG)
	defer SetLevel(INFO)

	InfoCF("client", "request sent", map[string]any{"request_id": 7})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "client", entry["component"])
	assert.Equal(t, "request sent", entry["message"])
	assert.EqualValues(t, 7, entry["request_id"])
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t)
	SetLevel(WARN)
	defer SetLevel(INFO)

	InfoC("poller", "tick")
	assert.Empty(t, buf.String())

	WarnC("poller", "slow tick")
	assert.Contains(t, buf.String(), "slow tick")
}

func TestRedactionApplied(t *testing.T) {
	buf := capture(t)

	InfoCF("telegram", "login 123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsawQ", map[string]any{
		"token": "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsawQ",
	})
	assert.NotContains(t, buf.String(), "AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsawQ")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel("nonsense"))
}

func TestFileLogging(t *testing.T) {
	capture(t)
	path := filepath.Join(t.TempDir(), "picotd.log")
	require.NoError(t, EnableFileLogging(path))
	InfoC("client", "to file")
	DisableFileLogging()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "to file"))
}
