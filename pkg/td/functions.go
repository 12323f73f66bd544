package td

type SetTdlibParameters struct {
	DatabaseDirectory string `json:"database_directory"`
	UseTestDC         bool   `json:"use_test_dc"`
	APIID             int32  `json:"api_id"`
	APIHash           string `json:"api_hash"`
	SystemLanguage    string `json:"system_language_code"`
	ApplicationVer    string `json:"application_version"`
}

func (*SetTdlibParameters) Type() string { return "setTdlibParameters" }
func (*SetTdlibParameters) function()    {}

type CheckDatabaseEncryptionKey struct {
	EncryptionKey []byte `json:"encryption_key"`
}

func (*CheckDatabaseEncryptionKey) Type() string { return "checkDatabaseEncryptionKey" }
func (*CheckDatabaseEncryptionKey) function()    {}

type CheckAuthenticationBotToken struct {
	Token string `json:"token"`
}

func (*CheckAuthenticationBotToken) Type() string { return "checkAuthenticationBotToken" }
func (*CheckAuthenticationBotToken) function()    {}

// GetMe returns the User the session is authorized as.
type GetMe struct{}

func (*GetMe) Type() string { return "getMe" }
func (*GetMe) function()    {}

// SendMessage returns a temporary Message; the final one arrives with
// UpdateMessageSendSucceeded or UpdateMessageSendFailed.
type SendMessage struct {
	ChatID           int64           `json:"chat_id"`
	ReplyToMessageID int64           `json:"reply_to_message_id,omitempty"`
	Text             string          `json:"text"`
	ReplyMarkup      *InlineKeyboard `json:"reply_markup,omitempty"`
}

func (*SendMessage) Type() string { return "sendMessage" }
func (*SendMessage) function()    {}

type EditMessageText struct {
	ChatID      int64           `json:"chat_id"`
	MessageID   int64           `json:"message_id"`
	Text        string          `json:"text"`
	ReplyMarkup *InlineKeyboard `json:"reply_markup,omitempty"`
}

func (*EditMessageText) Type() string { return "editMessageText" }
func (*EditMessageText) function()    {}

type DeleteMessages struct {
	ChatID     int64   `json:"chat_id"`
	MessageIDs []int64 `json:"message_ids"`
}

func (*DeleteMessages) Type() string { return "deleteMessages" }
func (*DeleteMessages) function()    {}

type AnswerCallbackQuery struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
	ShowAlert       bool   `json:"show_alert,omitempty"`
}

func (*AnswerCallbackQuery) Type() string { return "answerCallbackQuery" }
func (*AnswerCallbackQuery) function()    {}

type SetCommands struct {
	Commands []BotCommand `json:"commands"`
}

func (*SetCommands) Type() string { return "setCommands" }
func (*SetCommands) function()    {}

type LogOut struct{}

func (*LogOut) Type() string { return "logOut" }
func (*LogOut) function()    {}

// Close asks the engine to shut the session down; it answers with Ok and then
// pushes AuthorizationStateClosing and AuthorizationStateClosed.
type Close struct{}

func (*Close) Type() string { return "close" }
func (*Close) function()    {}
