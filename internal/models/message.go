package models

import "time"

// MessageType distinguishes how a message body is rendered.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageFile  MessageType = "file"
)

// ReadStatus is the delivery state of a message for its recipients.
type ReadStatus string

const (
	ReadStatusSent ReadStatus = "sent"
	ReadStatusRead ReadStatus = "read"
)

// Attachment describes a file carried by a message.
type Attachment struct {
	Name     string `db:"name" json:"name"`
	URL      string `db:"url" json:"url"`
	Size     int64  `db:"size" json:"size"`
	MimeType string `db:"mime_type" json:"mime_type"`
}

// Message is a single entry of a conversation's history. Content is nil for
// attachment-only messages. ParentMatricule, when set, references an older
// message of the same conversation.
type Message struct {
	Matricule             string       `db:"matricule" json:"matricule"`
	ConversationMatricule string       `db:"conversation_matricule" json:"conversation_matricule"`
	SenderMatricule       string       `db:"sender_matricule" json:"sender_matricule"`
	Content               *string      `db:"content" json:"content"`
	Type                  MessageType  `db:"type" json:"type"`
	ParentMatricule       *string      `db:"parent_matricule" json:"parent_matricule,omitempty"`
	Pinned                bool         `db:"pinned" json:"pinned"`
	Edited                bool         `db:"edited" json:"edited"`
	ReadStatus            ReadStatus   `db:"read_status" json:"read_status"`
	CanEdit               bool         `json:"can_edit"`
	CanModerate           bool         `json:"can_moderate"`
	Attachments           []Attachment `json:"attachments"`
	SentAt                time.Time    `db:"sent_at" json:"sent_at"`
}

// MessagePage is one page of history plus the full current roster, as the
// collaborator returns them together.
type MessagePage struct {
	Messages     []Message     `json:"messages"`
	Participants []Participant `json:"participants"`
	Page         int           `json:"page"`
	HasMore      bool          `json:"has_more"`
}

// Summary builds the directory preview for this message.
func (m Message) Summary() MessageSummary {
	s := MessageSummary{Type: m.Type}
	if m.Content != nil {
		s.Preview = *m.Content
	}
	return s
}

// Before orders messages by send time, breaking ties by matricule so two
// loads can never disagree on the order of same-instant messages.
func (m Message) Before(other Message) bool {
	if m.SentAt.Equal(other.SentAt) {
		return m.Matricule < other.Matricule
	}
	return m.SentAt.Before(other.SentAt)
}
