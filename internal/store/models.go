package store

import "time"

const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
	SenderSystem    = "system"
)

type User struct {
	ID             string    `json:"id" db:"id"` // UUID
	ExternalUserID string    `json:"external_user_id" db:"external_user_id"`
	PasswordHash   string    `json:"-" db:"password_hash"` // Do not expose this in JSON responses
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Message is one chat turn. Rows are immutable once written; the only
// mutation they ever see is the re-key from a temp conversation id to a
// permanent conversation id when the conversation is finalized.
type Message struct {
	ID                 string    `json:"message_id" db:"message_id"` // UUID
	UserID             string    `json:"user_id" db:"user_id"`
	Sender             string    `json:"sender" db:"sender"` // "user", "assistant" or "system"
	Text               string    `json:"message_text" db:"message_text"`
	Timestamp          time.Time `json:"timestamp" db:"timestamp"`
	TempConversationID *string   `json:"temp_conversation_id" db:"temp_conversation_id"`
	ConversationID     *string   `json:"conversation_id" db:"conversation_id"`
}

// ConversationSummary is created exactly once per finalized conversation
// and never mutated afterwards. StartTime is the timestamp of the earliest
// message in the source transcript; EndTime is the finalization instant.
type ConversationSummary struct {
	ConversationID string    `json:"conversation_id" db:"conversation_id"` // UUID
	UserID         string    `json:"user_id" db:"user_id"`
	StartTime      time.Time `json:"start_time" db:"start_time"`
	EndTime        time.Time `json:"end_time" db:"end_time"`
	Summary        string    `json:"summary" db:"summary"`
}

// Memory is a user-owned journal record, optionally derived from a
// finalized conversation. Its lifecycle is independent of the conversation
// it came from.
type Memory struct {
	ID             string    `json:"id" db:"id"` // UUID
	UserID         string    `json:"user_id" db:"user_id"`
	ConversationID *string   `json:"conversation_id" db:"conversation_id"`
	Title          string    `json:"title" db:"title"`
	Content        string    `json:"content" db:"content"`
	ImageURL       *string   `json:"image_url" db:"image_url"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// ConversationPreview is a read model for listing in-progress
// conversations: one row per temp conversation id with its latest message.
type ConversationPreview struct {
	TempConversationID string    `json:"temp_conversation_id" db:"temp_conversation_id"`
	LastMessage        string    `json:"last_message" db:"last_message"`
	Timestamp          time.Time `json:"timestamp" db:"timestamp"`
}
