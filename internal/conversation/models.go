//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package conversation

import (
	"encoding/json"
	"time"
)

// DefaultTitle is the title of a conversation until its first user
// message arrives.
const DefaultTitle = "New Chat"

// titleRunes is the length of an automatic title before the ellipsis.
const titleRunes = 30

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Document statuses.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Conversation is a chat thread.
type Conversation struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`
	Messages  []Message `json:"messages,omitempty"`
}

// TableName sets the table name.
func (Conversation) TableName() string { return "conversations" }

// Message is one turn of a conversation. Sources holds the JSON encoded
// source list of an assistant answer.
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID string    `gorm:"size:36;not null;index" json:"conversation_id"`
	Role           string    `gorm:"size:20;not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	Sources        JSONText  `gorm:"type:text" json:"sources"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName sets the table name.
func (Message) TableName() string { return "messages" }

// Document is an ingested file. Content keeps the uploaded text for
// previews and is not part of the JSON form.
type Document struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Filename   string    `gorm:"size:255;not null" json:"filename"`
	Size       int64     `json:"size"`
	Status     string    `gorm:"size:20;not null" json:"status"`
	ChunkCount int       `json:"chunk_count"`
	Error      string    `gorm:"type:text" json:"error,omitempty"`
	Content    string    `gorm:"type:text" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName sets the table name.
func (Document) TableName() string { return "documents" }

// JSONText is a JSON document stored as text. It marshals as the raw
// JSON value, or [] when empty.
type JSONText string

// EncodeJSON marshals v into a JSONText. nil encodes as empty.
func EncodeJSON(v any) (JSONText, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return JSONText(b), nil
}

// MarshalJSON implements json.Marshaler.
func (j JSONText) MarshalJSON() ([]byte, error) {
	if j == "" {
		return []byte("[]"), nil
	}
	if !json.Valid([]byte(j)) {
		return json.Marshal(string(j))
	}
	return []byte(j), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *JSONText) UnmarshalJSON(b []byte) error {
	*j = JSONText(b)
	return nil
}

// autoTitle derives a conversation title from the first user message.
func autoTitle(content string) string {
	runes := []rune(content)
	if len(runes) > titleRunes {
		return string(runes[:titleRunes]) + "..."
	}
	return content
}
