package models

import "time"

// Message types.
const (
	MessageTypeText   = "text"
	MessageTypeMedia  = "media"
	MessageTypeSystem = "system"
)

// DeletedPlaceholder replaces the content of a message deleted for everyone.
const DeletedPlaceholder = "This message was deleted"

// Message represents a conversation message.
type Message struct {
	ID             int        `db:"id" json:"id"`
	ConversationID int        `db:"conversation_id" json:"conversation_id"`
	SenderID       int        `db:"sender_id" json:"sender_id"`
	Type           string     `db:"msg_type" json:"type"`
	Content        string     `db:"content" json:"content"`
	MediaURL       *string    `db:"media_url" json:"media_url,omitempty"`
	MediaType      *string    `db:"media_type" json:"media_type,omitempty"`
	ReplyToID      *int       `db:"reply_to_id" json:"reply_to_id,omitempty"`
	IsEdited       bool       `db:"is_edited" json:"is_edited"`
	EditedAt       *time.Time `db:"edited_at" json:"edited_at,omitempty"`
	IsDeleted      bool       `db:"is_deleted" json:"is_deleted"`
	DeletedAt      *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`

	Reactions []Reaction    `json:"reactions,omitempty"`
	ReadBy    []ReadReceipt `json:"read_by,omitempty"`
}

// Reaction is a single user's reaction to a message. The store keeps at most
// one row per (message, user); adding replaces any prior reaction.
type Reaction struct {
	MessageID int       `db:"message_id" json:"message_id"`
	UserID    int       `db:"user_id" json:"user_id"`
	Emoji     string    `db:"emoji" json:"emoji"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ReadReceipt records that a user has read a message, once.
type ReadReceipt struct {
	MessageID int       `db:"message_id" json:"message_id"`
	UserID    int       `db:"user_id" json:"user_id"`
	ReadAt    time.Time `db:"read_at" json:"read_at"`
}

// Sanitized returns the message as it should appear to clients: a message
// deleted for everyone keeps its row but shows only the placeholder.
func (m Message) Sanitized() Message {
	if !m.IsDeleted {
		return m
	}
	m.Content = DeletedPlaceholder
	m.MediaURL = nil
	m.MediaType = nil
	m.Reactions = nil
	return m
}
