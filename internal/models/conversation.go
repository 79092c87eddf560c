package models

import "time"

// ConversationStatus is the lifecycle state of a conversation.
type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "active"
	ConversationArchived ConversationStatus = "archived"
)

// Conversation is the directory-level view of a conversation.
type Conversation struct {
	Matricule        string             `db:"matricule" json:"matricule"`
	CreatorMatricule string             `db:"creator_matricule" json:"creator_matricule"`
	Status           ConversationStatus `db:"status" json:"status"`
	ParticipantCount int                `db:"participant_count" json:"participant_count"`
	LastActivityAt   time.Time          `db:"last_activity_at" json:"last_activity_at"`
	LastMessage      *MessageSummary    `json:"last_message,omitempty"`
	UnreadCount      int                `json:"unread_count"`
}

// MessageSummary is the last-message preview shown in the conversation list.
// Preview carries trimmed text content; for attachment-only messages it is
// empty and Type is the tag to render instead.
type MessageSummary struct {
	Preview string      `json:"preview"`
	Type    MessageType `json:"type"`
}

// IsArchived reports whether the conversation rejects new sends.
func (c Conversation) IsArchived() bool {
	return c.Status == ConversationArchived
}
