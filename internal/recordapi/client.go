// Package recordapi talks to the e-learning backend ("record API"). All
// collaborator calls of the messaging core go through the Client interface
// so tests can substitute a mock.
package recordapi

import (
	"context"

	"messaging-core/internal/models"
)

// AttachmentUpload is an attachment staged for a send call.
type AttachmentUpload struct {
	Name     string
	MimeType string
	Data     []byte
}

// SendMessageRequest carries everything a send needs. Content may be empty
// when attachments are present; the executor validates before calling.
type SendMessageRequest struct {
	ConversationMatricule string
	Content               string
	ParentMatricule       string
	Attachments           []AttachmentUpload
}

// Client is the record API surface the core consumes.
type Client interface {
	ListConversations(ctx context.Context) ([]models.Conversation, error)
	GetMessages(ctx context.Context, conversationMatricule string, page, limit int) (models.MessagePage, error)
	StartConversation(ctx context.Context, participantMatricules []string) (models.ConversationDetail, error)
	SendMessage(ctx context.Context, req SendMessageRequest) error
	EditMessage(ctx context.Context, messageMatricule, content string) (models.Message, error)
	DeleteMessage(ctx context.Context, messageMatricule string) error
	TogglePin(ctx context.Context, messageMatricule string) (models.Message, error)
	AddParticipants(ctx context.Context, conversationMatricule string, matricules []string) ([]models.Participant, error)
	RemoveParticipants(ctx context.Context, conversationMatricule string, matricules []string) ([]models.Participant, error)
	ToggleArchive(ctx context.Context, conversationMatricule string) (models.Conversation, error)
	SearchMessages(ctx context.Context, conversationMatricule, query string) ([]models.Message, error)
	SearchUsers(ctx context.Context, query, roleFilter, scopeFilter string) ([]models.Participant, error)
}
