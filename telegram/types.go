package telegram

// Update is the subset of a Telegram update the bot cares about. Unknown
// fields are ignored by the JSON decoder.
type Update struct {
	UpdateID int64    `json:"update_id" validate:"required"`
	Message  *Message `json:"message,omitempty"`
}

type Message struct {
	MessageID int64  `json:"message_id,omitempty"`
	Text      string `json:"text,omitempty"`
	Chat      Chat   `json:"chat"`
	From      *User  `json:"from,omitempty"`
}

type Chat struct {
	ID   int64  `json:"id" validate:"required"`
	Type string `json:"type,omitempty"` // private|group|supergroup|channel
}

type User struct {
	ID       int64  `json:"id"`
	IsBot    bool   `json:"is_bot,omitempty"`
	Username string `json:"username,omitempty"`
}

// HasText reports whether the update carries a text message worth answering.
func (u *Update) HasText() bool {
	return u != nil && u.Message != nil && u.Message.Text != ""
}

type sendMessageRequest struct {
	ChatID                int64  `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

type setWebhookRequest struct {
	Url            string   `json:"url"`
	SecretToken    string   `json:"secret_token,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
	ErrorCode   int    `json:"error_code,omitempty"`
}

type getMeResponse struct {
	apiResponse
	Result User `json:"result"`
}
