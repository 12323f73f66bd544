package run

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunCommand(t *testing.T) {
	cmd := NewRunCommand()

	require.NotNil(t, cmd)

	assert.Equal(t, "run", cmd.Use)
	assert.Equal(t, "Run the bot until interrupted", cmd.Short)

	assert.Len(t, cmd.Aliases, 1)
	assert.True(t, cmd.HasAlias("r"))

	assert.Nil(t, cmd.Run)
	assert.NotNil(t, cmd.RunE)
	assert.False(t, cmd.HasSubCommands())

	assert.True(t, cmd.HasFlags())
	assert.NotNil(t, cmd.Flags().Lookup("debug"))
	assert.NotNil(t, cmd.Flags().Lookup("engine"))
}
