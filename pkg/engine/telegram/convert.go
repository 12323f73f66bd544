package telegram

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/mymmrac/telego"
	ta "github.com/mymmrac/telego/telegoapi"

	"github.com/sipeed/picotd/pkg/td"
)

// Bot API caps callback_data at 64 bytes.
const maxCallbackData = 64

func toUser(u *telego.User) *td.User {
	if u == nil {
		return nil
	}
	return &td.User{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
		IsBot:     u.IsBot,
	}
}

func toMessage(m *telego.Message) *td.Message {
	if m == nil {
		return nil
	}
	msg := &td.Message{
		ID:     int64(m.MessageID),
		ChatID: m.Chat.ID,
		Date:   m.Date,
	}
	if m.From != nil {
		msg.SenderUserID = m.From.ID
	}
	if m.ReplyToMessage != nil {
		msg.ReplyToMessageID = int64(m.ReplyToMessage.MessageID)
	}
	if m.Text != "" {
		msg.Content = &td.MessageText{Text: m.Text}
	} else {
		msg.Content = &td.MessageUnsupported{Kind: contentKind(m)}
	}
	return msg
}

func contentKind(m *telego.Message) string {
	switch {
	case len(m.Photo) > 0:
		return "photo"
	case m.Document != nil:
		return "document"
	case m.Sticker != nil:
		return "sticker"
	case m.Voice != nil:
		return "voice"
	case m.Audio != nil:
		return "audio"
	case m.Video != nil:
		return "video"
	case m.Location != nil:
		return "location"
	default:
		return "unknown"
	}
}

// toUpdate maps the update kinds the engine subscribes to. Anything else
// yields nil.
func toUpdate(u telego.Update) td.Update {
	switch {
	case u.Message != nil:
		return &td.UpdateNewMessage{Message: toMessage(u.Message)}
	case u.EditedMessage != nil:
		return &td.UpdateMessageEdited{Message: toMessage(u.EditedMessage)}
	case u.CallbackQuery != nil:
		return toCallbackQuery(u.CallbackQuery)
	default:
		return nil
	}
}

func toCallbackQuery(q *telego.CallbackQuery) *td.UpdateNewCallbackQuery {
	up := &td.UpdateNewCallbackQuery{
		ID:           q.ID,
		SenderUserID: q.From.ID,
		Payload:      decodeCallbackData(q.Data),
	}
	if q.Message != nil {
		up.ChatID = q.Message.GetChat().ID
		up.MessageID = int64(q.Message.GetMessageID())
	}
	return up
}

// callbackTag marks callback data this engine encoded. It is outside the
// base64url alphabet, so untagged strings are never mistaken for ours.
const callbackTag = "~"

func encodeCallbackData(data []byte) (string, error) {
	s := callbackTag + base64.RawURLEncoding.EncodeToString(data)
	if len(s) > maxCallbackData {
		return "", td.NewError(400, "BUTTON_DATA_INVALID: %d bytes encode to %d", len(data), len(s))
	}
	return s, nil
}

// decodeCallbackData passes buttons this engine did not create through as raw
// bytes, so the router can reject them as stale.
func decodeCallbackData(s string) []byte {
	enc, ok := strings.CutPrefix(s, callbackTag)
	if !ok {
		return []byte(s)
	}
	b, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return []byte(s)
	}
	return b
}

func toKeyboard(k *td.InlineKeyboard) (*telego.InlineKeyboardMarkup, error) {
	if k == nil {
		return nil, nil
	}
	rows := make([][]telego.InlineKeyboardButton, 0, len(k.Rows))
	for _, row := range k.Rows {
		buttons := make([]telego.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			btn := telego.InlineKeyboardButton{Text: b.Text, URL: b.URL}
			if b.URL == "" {
				data, err := encodeCallbackData(b.Data)
				if err != nil {
					return nil, err
				}
				btn.CallbackData = data
			}
			buttons = append(buttons, btn)
		}
		rows = append(rows, buttons)
	}
	return &telego.InlineKeyboardMarkup{InlineKeyboard: rows}, nil
}

func toBotCommands(cmds []td.BotCommand) []telego.BotCommand {
	out := make([]telego.BotCommand, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, telego.BotCommand{Command: c.Command, Description: c.Description})
	}
	return out
}

// toError keeps the Bot API error code when there is one.
func toError(err error) *td.Error {
	var tdErr *td.Error
	if errors.As(err, &tdErr) {
		return tdErr
	}
	var apiErr *ta.Error
	if errors.As(err, &apiErr) {
		return td.NewError(apiErr.ErrorCode, "%s", apiErr.Description)
	}
	return td.NewError(500, "%s", err.Error())
}
