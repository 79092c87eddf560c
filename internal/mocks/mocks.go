package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"messaging-core/internal/models"
	"messaging-core/internal/notify"
	"messaging-core/internal/recordapi"
)

// RecordClientMock is a testify double for the record API client.
type RecordClientMock struct {
	mock.Mock
}

func (m *RecordClientMock) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	args := m.Called(ctx)
	var list []models.Conversation
	if val := args.Get(0); val != nil {
		list = val.([]models.Conversation)
	}
	return list, args.Error(1)
}

func (m *RecordClientMock) GetMessages(ctx context.Context, conversationMatricule string, page, limit int) (models.MessagePage, error) {
	args := m.Called(ctx, conversationMatricule, page, limit)
	var pageData models.MessagePage
	if val := args.Get(0); val != nil {
		pageData = val.(models.MessagePage)
	}
	return pageData, args.Error(1)
}

func (m *RecordClientMock) StartConversation(ctx context.Context, participantMatricules []string) (models.ConversationDetail, error) {
	args := m.Called(ctx, participantMatricules)
	var detail models.ConversationDetail
	if val := args.Get(0); val != nil {
		detail = val.(models.ConversationDetail)
	}
	return detail, args.Error(1)
}

func (m *RecordClientMock) SendMessage(ctx context.Context, req recordapi.SendMessageRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *RecordClientMock) EditMessage(ctx context.Context, messageMatricule, content string) (models.Message, error) {
	args := m.Called(ctx, messageMatricule, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *RecordClientMock) DeleteMessage(ctx context.Context, messageMatricule string) error {
	args := m.Called(ctx, messageMatricule)
	return args.Error(0)
}

func (m *RecordClientMock) TogglePin(ctx context.Context, messageMatricule string) (models.Message, error) {
	args := m.Called(ctx, messageMatricule)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *RecordClientMock) AddParticipants(ctx context.Context, conversationMatricule string, matricules []string) ([]models.Participant, error) {
	args := m.Called(ctx, conversationMatricule, matricules)
	var roster []models.Participant
	if val := args.Get(0); val != nil {
		roster = val.([]models.Participant)
	}
	return roster, args.Error(1)
}

func (m *RecordClientMock) RemoveParticipants(ctx context.Context, conversationMatricule string, matricules []string) ([]models.Participant, error) {
	args := m.Called(ctx, conversationMatricule, matricules)
	var roster []models.Participant
	if val := args.Get(0); val != nil {
		roster = val.([]models.Participant)
	}
	return roster, args.Error(1)
}

func (m *RecordClientMock) ToggleArchive(ctx context.Context, conversationMatricule string) (models.Conversation, error) {
	args := m.Called(ctx, conversationMatricule)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *RecordClientMock) SearchMessages(ctx context.Context, conversationMatricule, query string) ([]models.Message, error) {
	args := m.Called(ctx, conversationMatricule, query)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *RecordClientMock) SearchUsers(ctx context.Context, query, roleFilter, scopeFilter string) ([]models.Participant, error) {
	args := m.Called(ctx, query, roleFilter, scopeFilter)
	var users []models.Participant
	if val := args.Get(0); val != nil {
		users = val.([]models.Participant)
	}
	return users, args.Error(1)
}

// PublisherMock is a testify double for the audit publisher.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

// NotifierMock records surfaced notifications.
type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) Notify(level notify.Level, text string) {
	m.Called(level, text)
}
