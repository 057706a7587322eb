package chat

import "time"

// Sender tags who produced a message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderBot    Sender = "bot"
	SenderSystem Sender = "system"
)

// Category classifies a message for log upsert semantics. System messages of
// a replaceable category supersede their predecessor instead of accumulating.
type Category string

const (
	CategoryUserText             Category = "user_text"
	CategoryBotText              Category = "bot_text"
	CategorySystemInit           Category = "system_init"
	CategorySystemDocUpdate      Category = "system_doc_update"
	CategorySystemStyleChange    Category = "system_style_change"
	CategorySystemSettingsChange Category = "system_settings_change"
	CategorySystemFAQUpdate      Category = "system_faq_update"
	CategorySystemError          Category = "system_error"
)

// Message is one entry of the chat log.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Category  Category  `json:"category"`
	Timestamp time.Time `json:"timestamp"`
}
