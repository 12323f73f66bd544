package td

// User is a chat participant.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	IsBot     bool   `json:"is_bot"`
}

func (*User) Type() string { return "user" }

// MessageSendingState is nil for delivered messages.
type MessageSendingState int

const (
	MessageSendingPending MessageSendingState = iota + 1
	MessageSendingFailed
)

// Message is a chat message. Messages still being sent carry a temporary,
// negative ID until the engine reports their final state.
type Message struct {
	ID               int64               `json:"id"`
	ChatID           int64               `json:"chat_id"`
	SenderUserID     int64               `json:"sender_user_id"`
	Date             int64               `json:"date"`
	ReplyToMessageID int64               `json:"reply_to_message_id,omitempty"`
	Content          MessageContent      `json:"content"`
	SendingState     MessageSendingState `json:"sending_state,omitempty"`
}

func (*Message) Type() string { return "message" }

// Text returns the plain text of the message, or "" for non-text content.
func (m *Message) Text() string {
	if m == nil {
		return ""
	}
	if t, ok := m.Content.(*MessageText); ok {
		return t.Text
	}
	return ""
}

// MessageContent is the sealed set of message bodies.
type MessageContent interface {
	Object
	messageContent()
}

type MessageText struct {
	Text string `json:"text"`
}

func (*MessageText) Type() string  { return "messageText" }
func (*MessageText) messageContent() {}

// MessageUnsupported stands in for media and service messages the client does
// not model.
type MessageUnsupported struct {
	Kind string `json:"kind"`
}

func (*MessageUnsupported) Type() string  { return "messageUnsupported" }
func (*MessageUnsupported) messageContent() {}

// InlineButton is a single inline keyboard button. Data is opaque callback
// payload; URL buttons leave it empty.
type InlineButton struct {
	Text string `json:"text"`
	Data []byte `json:"data,omitempty"`
	URL  string `json:"url,omitempty"`
}

type InlineKeyboard struct {
	Rows [][]InlineButton `json:"rows"`
}

func (*InlineKeyboard) Type() string { return "replyMarkupInlineKeyboard" }

type BotCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

func (*BotCommand) Type() string { return "botCommand" }
