package td

// Update is the sealed set of push updates. Adding a member here must be
// matched by a case in client.deliver.
type Update interface {
	Object
	update()
}

// AuthorizationState is the sealed set of session authorization states.
type AuthorizationState interface {
	Object
	authorizationState()
}

type AuthorizationStateWaitTdlibParameters struct{}
type AuthorizationStateWaitEncryptionKey struct{}
type AuthorizationStateWaitPhoneNumber struct{}
type AuthorizationStateReady struct{}
type AuthorizationStateLoggingOut struct{}
type AuthorizationStateClosing struct{}
type AuthorizationStateClosed struct{}

func (*AuthorizationStateWaitTdlibParameters) Type() string {
	return "authorizationStateWaitTdlibParameters"
}
func (*AuthorizationStateWaitEncryptionKey) Type() string {
	return "authorizationStateWaitEncryptionKey"
}
func (*AuthorizationStateWaitPhoneNumber) Type() string { return "authorizationStateWaitPhoneNumber" }
func (*AuthorizationStateReady) Type() string           { return "authorizationStateReady" }
func (*AuthorizationStateLoggingOut) Type() string      { return "authorizationStateLoggingOut" }
func (*AuthorizationStateClosing) Type() string         { return "authorizationStateClosing" }
func (*AuthorizationStateClosed) Type() string          { return "authorizationStateClosed" }

func (*AuthorizationStateWaitTdlibParameters) authorizationState() {}
func (*AuthorizationStateWaitEncryptionKey) authorizationState()   {}
func (*AuthorizationStateWaitPhoneNumber) authorizationState()     {}
func (*AuthorizationStateReady) authorizationState()               {}
func (*AuthorizationStateLoggingOut) authorizationState()          {}
func (*AuthorizationStateClosing) authorizationState()             {}
func (*AuthorizationStateClosed) authorizationState()              {}

type UpdateAuthorizationState struct {
	State AuthorizationState `json:"authorization_state"`
}

type UpdateNewMessage struct {
	Message *Message `json:"message"`
}

type UpdateMessageEdited struct {
	Message *Message `json:"message"`
}

type UpdateDeleteMessages struct {
	ChatID     int64   `json:"chat_id"`
	MessageIDs []int64 `json:"message_ids"`
}

// UpdateMessageSendAcknowledged reports that the server received a message
// that is still being sent.
type UpdateMessageSendAcknowledged struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int64 `json:"message_id"`
}

type UpdateMessageSendSucceeded struct {
	Message      *Message `json:"message"`
	OldMessageID int64    `json:"old_message_id"`
}

type UpdateMessageSendFailed struct {
	Message      *Message `json:"message"`
	OldMessageID int64    `json:"old_message_id"`
	Error        *Error   `json:"error"`
}

// UpdateNewCallbackQuery carries the raw bytes attached to an inline button.
type UpdateNewCallbackQuery struct {
	ID           string `json:"id"`
	SenderUserID int64  `json:"sender_user_id"`
	ChatID       int64  `json:"chat_id"`
	MessageID    int64  `json:"message_id"`
	Payload      []byte `json:"payload"`
}

type UpdateChatTitle struct {
	ChatID int64  `json:"chat_id"`
	Title  string `json:"title"`
}

type UpdateUser struct {
	User *User `json:"user"`
}

// UpdateFile reports transfer progress of a file.
type UpdateFile struct {
	FileID         int32 `json:"file_id"`
	Size           int64 `json:"size"`
	DownloadedSize int64 `json:"downloaded_size"`
	UploadedSize   int64 `json:"uploaded_size"`
	Completed      bool  `json:"completed"`
}

type UpdateNotification struct {
	NotificationGroupID int32  `json:"notification_group_id"`
	ChatID              int64  `json:"chat_id"`
	Text                string `json:"text"`
}

type ConnectionState int

const (
	ConnectionStateWaitingForNetwork ConnectionState = iota
	ConnectionStateConnecting
	ConnectionStateUpdating
	ConnectionStateReady
)

type UpdateConnectionState struct {
	State ConnectionState `json:"state"`
}

type UpdateOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (*UpdateAuthorizationState) Type() string      { return "updateAuthorizationState" }
func (*UpdateNewMessage) Type() string              { return "updateNewMessage" }
func (*UpdateMessageEdited) Type() string           { return "updateMessageEdited" }
func (*UpdateDeleteMessages) Type() string          { return "updateDeleteMessages" }
func (*UpdateMessageSendAcknowledged) Type() string { return "updateMessageSendAcknowledged" }
func (*UpdateMessageSendSucceeded) Type() string    { return "updateMessageSendSucceeded" }
func (*UpdateMessageSendFailed) Type() string       { return "updateMessageSendFailed" }
func (*UpdateNewCallbackQuery) Type() string        { return "updateNewCallbackQuery" }
func (*UpdateChatTitle) Type() string               { return "updateChatTitle" }
func (*UpdateUser) Type() string                    { return "updateUser" }
func (*UpdateFile) Type() string                    { return "updateFile" }
func (*UpdateNotification) Type() string            { return "updateNotification" }
func (*UpdateConnectionState) Type() string         { return "updateConnectionState" }
func (*UpdateOption) Type() string                  { return "updateOption" }

func (*UpdateAuthorizationState) update()      {}
func (*UpdateNewMessage) update()              {}
func (*UpdateMessageEdited) update()           {}
func (*UpdateDeleteMessages) update()          {}
func (*UpdateMessageSendAcknowledged) update() {}
func (*UpdateMessageSendSucceeded) update()    {}
func (*UpdateMessageSendFailed) update()       {}
func (*UpdateNewCallbackQuery) update()        {}
func (*UpdateChatTitle) update()               {}
func (*UpdateUser) update()                    {}
func (*UpdateFile) update()                    {}
func (*UpdateNotification) update()            {}
func (*UpdateConnectionState) update()         {}
func (*UpdateOption) update()                  {}
