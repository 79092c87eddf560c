package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-core/internal/faults"
	"messaging-core/internal/logger"
	"messaging-core/internal/mocks"
	"messaging-core/internal/models"
)

func page(conversation string, msgs ...models.Message) models.MessagePage {
	return models.MessagePage{Messages: msgs, Page: 1}
}

func msg(matricule, conversation string, at time.Time) models.Message {
	content := "content of " + matricule
	return models.Message{
		Matricule:             matricule,
		ConversationMatricule: conversation,
		SenderMatricule:       "u1",
		Content:               &content,
		Type:                  models.MessageText,
		ReadStatus:            models.ReadStatusSent,
		SentAt:                at,
	}
}

func TestOpenLoadsPageOne(t *testing.T) {
	client := new(mocks.RecordClientMock)
	s := New(client, 50, logger.NewNop())

	now := time.Now()
	client.On("GetMessages", mock.Anything, "c1", 1, 50).
		Return(page("c1", msg("m1", "c1", now), msg("m2", "c1", now.Add(time.Second))), nil).Once()

	require.NoError(t, s.Open(context.Background(), "c1"))
	assert.Equal(t, "c1", s.Conversation())
	assert.Len(t, s.Messages(), 2)
	client.AssertExpectations(t)
}

func TestSilentRefreshSwallowsFailures(t *testing.T) {
	client := new(mocks.RecordClientMock)
	s := New(client, 50, logger.NewNop())

	now := time.Now()
	client.On("GetMessages", mock.Anything, "c1", 1, 50).
		Return(page("c1", msg("m1", "c1", now)), nil).Once()
	require.NoError(t, s.Open(context.Background(), "c1"))

	client.On("GetMessages", mock.Anything, "c1", 1, 50).
		Return(models.MessagePage{}, faults.Network("get_messages", assert.AnError)).Once()

	// Must not panic or surface; the loaded window stays as it was.
	s.SilentRefresh(context.Background(), "c1")
	assert.Len(t, s.Messages(), 1)
	client.AssertExpectations(t)
}

func TestSilentRefreshReplaceSemantics(t *testing.T) {
	client := new(mocks.RecordClientMock)
	s := New(client, 50, logger.NewNop())

	now := time.Now()
	m1 := msg("m1", "c1", now)
	m2 := msg("m2", "c1", now.Add(time.Second))
	client.On("GetMessages", mock.Anything, "c1", 1, 50).
		Return(page("c1", m1, m2), nil).Once()
	require.NoError(t, s.Open(context.Background(), "c1"))

	edited := m1
	editedContent := "edited"
	edited.Content = &editedContent
	edited.Edited = true
	m3 := msg("m3", "c1", now.Add(2*time.Second))
	client.On("GetMessages", mock.Anything, "c1", 1, 50).
		Return(page("c1", edited, m2, m3), nil).Once()

	s.SilentRefresh(context.Background(), "c1")

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "m1", msgs[0].Matricule)
	assert.True(t, msgs[0].Edited)
	assert.Equal(t, "m3", msgs[2].Matricule)
}

func TestInFlightRefreshCannotTouchNewConversation(t *testing.T) {
	client := new(mocks.RecordClientMock)
	s := New(client, 50, logger.NewNop())

	now := time.Now()
	client.On("GetMessages", mock.Anything, "c1", 1, 50).
		Return(page("c1", msg("m1", "c1", now)), nil).Once()
	require.NoError(t, s.Open(context.Background(), "c1"))

	release := make(chan time.Time)
	client.On("GetMessages", mock.Anything, "c1", 1, 50).
		WaitUntil(release).
		Return(page("c1", msg("stale", "c1", now.Add(time.Minute))), nil).Once()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.SilentRefresh(context.Background(), "c1")
	}()

	// Give the silent refresh time to claim the flight slot, then switch
	// conversations while its response is still pending.
	time.Sleep(20 * time.Millisecond)

	client.On("GetMessages", mock.Anything, "c2", 1, 50).
		Return(page("c2", msg("m2", "c2", now)), nil).Once()

	openDone := make(chan error, 1)
	go func() {
		openDone <- s.Open(context.Background(), "c2")
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)

	require.NoError(t, <-openDone)
	wg.Wait()

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "m2", msgs[0].Matricule)
	for _, m := range msgs {
		assert.NotEqual(t, "stale", m.Matricule)
	}
}

func TestSilentRefreshSkipsWhenAnotherIsInFlight(t *testing.T) {
	client := new(mocks.RecordClientMock)
	s := New(client, 50, logger.NewNop())

	now := time.Now()
	client.On("GetMessages", mock.Anything, "c1", 1, 50).
		Return(page("c1", msg("m1", "c1", now)), nil).Once()
	require.NoError(t, s.Open(context.Background(), "c1"))

	release := make(chan time.Time)
	client.On("GetMessages", mock.Anything, "c1", 1, 50).
		WaitUntil(release).
		Return(page("c1", msg("m1", "c1", now)), nil).Once()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.SilentRefresh(context.Background(), "c1")
	}()
	time.Sleep(20 * time.Millisecond)

	// Second tick while the first is outstanding: must be a no-op, not a
	// second collaborator call.
	s.SilentRefresh(context.Background(), "c1")

	close(release)
	wg.Wait()
	client.AssertNumberOfCalls(t, "GetMessages", 2)
}

func TestLoadOlderPrepends(t *testing.T) {
	client := new(mocks.RecordClientMock)
	s := New(client, 2, logger.NewNop())

	now := time.Now()
	client.On("GetMessages", mock.Anything, "c1", 1, 2).
		Return(page("c1", msg("m3", "c1", now.Add(3*time.Second)), msg("m4", "c1", now.Add(4*time.Second))), nil).Once()
	require.NoError(t, s.Open(context.Background(), "c1"))

	client.On("GetMessages", mock.Anything, "c1", 2, 2).
		Return(page("c1", msg("m1", "c1", now.Add(time.Second)), msg("m2", "c1", now.Add(2*time.Second))), nil).Once()
	require.NoError(t, s.LoadOlder(context.Background(), 2))

	msgs := s.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "m1", msgs[0].Matricule)
	assert.Equal(t, "m4", msgs[3].Matricule)
}

func TestLoadOlderRejectsPageOne(t *testing.T) {
	client := new(mocks.RecordClientMock)
	s := New(client, 50, logger.NewNop())

	err := s.LoadOlder(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, faults.IsValidation(err))
}

func TestSearchMessagesEmptyQueryMakesNoCall(t *testing.T) {
	client := new(mocks.RecordClientMock)
	s := New(client, 50, logger.NewNop())

	msgs, err := s.SearchMessages(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, msgs)
	client.AssertNotCalled(t, "SearchMessages", mock.Anything, mock.Anything, mock.Anything)
}

func TestRosterForwardedToHook(t *testing.T) {
	client := new(mocks.RecordClientMock)
	s := New(client, 50, logger.NewNop())

	received := make(chan []models.Participant, 1)
	s.SetRosterHook(func(conversation string, roster []models.Participant) {
		received <- roster
	})

	now := time.Now()
	withRoster := models.MessagePage{
		Messages:     []models.Message{msg("m1", "c1", now)},
		Participants: []models.Participant{{Matricule: "u1"}, {Matricule: "u2"}},
		Page:         1,
	}
	client.On("GetMessages", mock.Anything, "c1", 1, 50).Return(withRoster, nil).Once()
	require.NoError(t, s.Open(context.Background(), "c1"))

	select {
	case roster := <-received:
		assert.Len(t, roster, 2)
	case <-time.After(time.Second):
		t.Fatal("roster hook not invoked")
	}
	assert.Len(t, s.Roster(), 2)
}
