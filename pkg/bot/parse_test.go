package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	prefixes := []string{"/", "!"}

	tests := []struct {
		name    string
		text    string
		want    *Command
		foreign bool
	}{
		{
			name: "bare",
			text: "/help",
			want: &Command{Prefix: "/", Name: "help"},
		},
		{
			name: "params keep raw spacing",
			text: "/echo  a   b ",
			want: &Command{Prefix: "/", Name: "echo", Raw: " a   b", Params: "a b", Args: []string{"a", "b"}},
		},
		{
			name: "bang prefix and case",
			text: "!Roll 2d6",
			want: &Command{Prefix: "!", Name: "roll", Raw: "2d6", Params: "2d6", Args: []string{"2d6"}},
		},
		{
			name: "own bot name",
			text: "/start@Loopback_Bot ref-1",
			want: &Command{Prefix: "/", Name: "start", Target: "Loopback_Bot", Raw: "ref-1", Params: "ref-1", Args: []string{"ref-1"}},
		},
		{
			name:    "other bot name",
			text:    "/start@other_bot",
			foreign: true,
		},
		{
			name: "newline separator",
			text: "/note\nfirst line",
			want: &Command{Prefix: "/", Name: "note", Raw: "first line", Params: "first line", Args: []string{"first", "line"}},
		},
		{
			name: "plain text",
			text: "hello /there",
		},
		{
			name: "prefix only",
			text: "/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, foreign := parseCommand(tt.text, prefixes, "loopback_bot")
			assert.Equal(t, tt.foreign, foreign)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePayload(t *testing.T) {
	p := parsePayload("promo-42-x extra")
	assert.Equal(t, "promo", p.Prefix)
	assert.Equal(t, []string{"42", "x"}, p.Args)
	assert.Equal(t, "promo-42-x extra", p.Raw)

	p = parsePayload("ref")
	assert.Equal(t, "ref", p.Prefix)
	assert.Empty(t, p.Args)
}

func TestPersistFieldsRoundTrip(t *testing.T) {
	rec := &Persist{UserID: -5, PersistID: 3, SubID: 9, AllowFunction: true, Data: []string{"a", ""}}
	fields := rec.Fields()
	require.Len(t, fields, 8)
	assert.Equal(t, []string{"-5", "3", "9", "true", "false"}, fields[:5])

	back, err := ParsePersist(fields)
	require.NoError(t, err)
	assert.Equal(t, rec.UserID, back.UserID)
	assert.Equal(t, rec.Data, back.Data)
	assert.True(t, back.AllowFunction)

	_, err = ParsePersist([]string{"1", "2"})
	assert.Error(t, err)
	_, err = ParsePersist([]string{"x", "1", "0", "true", "true", "0"})
	assert.Error(t, err)
}
