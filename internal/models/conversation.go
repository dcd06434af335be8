package models

import (
	"database/sql"
	"time"
)

// Conversation types.
const (
	ConversationDirect = "direct"
	ConversationGroup  = "group"
)

// Conversation represents a direct or group message thread.
type Conversation struct {
	ID             int            `db:"id" json:"id"`
	Type           string         `db:"conv_type" json:"type"`
	Name           string         `db:"name" json:"name,omitempty"`
	DirectKey      sql.NullString `db:"direct_key" json:"-"`
	LastMessageID  sql.NullInt64  `db:"last_message_id" json:"-"`
	LastActivityAt time.Time      `db:"last_activity_at" json:"last_activity_at"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// Participant models per-user conversation state.
type Participant struct {
	ConversationID int  `db:"conversation_id" json:"conversation_id"`
	UserID         int  `db:"user_id" json:"user_id"`
	Archived       bool `db:"archived" json:"archived"`
	Muted          bool `db:"muted" json:"muted"`
	Pinned         bool `db:"pinned" json:"pinned"`
}

// ConversationSummary is the API view of a conversation for one user.
type ConversationSummary struct {
	ID             int       `db:"id" json:"id"`
	Type           string    `db:"conv_type" json:"type"`
	Name           string    `db:"name" json:"name,omitempty"`
	LastActivityAt time.Time `db:"last_activity_at" json:"last_activity_at"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	Archived       bool      `db:"archived" json:"archived"`
	Muted          bool      `db:"muted" json:"muted"`
	Pinned         bool      `db:"pinned" json:"pinned"`
	LastMessage    *Message  `json:"last_message,omitempty"`
	Participants   []int     `json:"participants,omitempty"`
}
