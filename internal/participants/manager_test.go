package participants

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-core/internal/directory"
	"messaging-core/internal/faults"
	"messaging-core/internal/logger"
	"messaging-core/internal/mocks"
	"messaging-core/internal/models"
	"messaging-core/internal/notify"
)

func newManager(t *testing.T, userMatricule, creatorMatricule string) (*Manager, *mocks.RecordClientMock, *mocks.NotifierMock) {
	t.Helper()

	client := new(mocks.RecordClientMock)
	notifier := new(mocks.NotifierMock)
	log := logger.NewNop()
	dir := directory.New(client, userMatricule, notifier, log)

	client.On("ListConversations", mock.Anything).
		Return([]models.Conversation{{
			Matricule:        "c1",
			CreatorMatricule: creatorMatricule,
			Status:           models.ConversationActive,
			LastActivityAt:   time.Now(),
		}}, nil)
	require.NoError(t, dir.Refresh(context.Background()))

	return NewManager(client, dir, nil, notifier, userMatricule, log), client, notifier
}

func TestSearchEmptyQueryMakesNoCall(t *testing.T) {
	m, client, _ := newManager(t, "me", "me")

	results, err := m.Search(context.Background(), "  ", "", "")
	require.NoError(t, err)
	assert.Empty(t, results)
	client.AssertNotCalled(t, "SearchUsers", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSearchForwardsFilters(t *testing.T) {
	m, client, _ := newManager(t, "me", "me")

	client.On("SearchUsers", mock.Anything, "dup", "student", "2a").
		Return([]models.Participant{{Matricule: "u7"}}, nil).Once()

	results, err := m.Search(context.Background(), "dup", "student", "2a")
	require.NoError(t, err)
	assert.Len(t, results, 1)
	client.AssertExpectations(t)
}

func TestAddRejectsEmptySelection(t *testing.T) {
	m, client, notifier := newManager(t, "me", "me")
	notifier.On("Notify", notify.LevelError, mock.Anything).Return().Once()

	err := m.Add(context.Background(), "c1", nil)
	require.Error(t, err)
	assert.True(t, faults.IsValidation(err))
	client.AssertNotCalled(t, "AddParticipants", mock.Anything, mock.Anything, mock.Anything)
	notifier.AssertExpectations(t)
}

func TestAddFailureIsSurfaced(t *testing.T) {
	m, client, notifier := newManager(t, "me", "me")

	client.On("AddParticipants", mock.Anything, "c1", []string{"u2"}).
		Return(nil, faults.Network("add_participants", assert.AnError)).Once()
	notifier.On("Notify", notify.LevelError, mock.Anything).Return().Once()

	err := m.Add(context.Background(), "c1", []string{"u2"})
	require.Error(t, err)
	notifier.AssertExpectations(t)
}

func TestAddUpdatesRoster(t *testing.T) {
	m, client, _ := newManager(t, "me", "me")

	roster := []models.Participant{{Matricule: "me"}, {Matricule: "u2"}, {Matricule: "u3"}}
	client.On("AddParticipants", mock.Anything, "c1", []string{"u2", "u3"}).
		Return(roster, nil).Once()

	require.NoError(t, m.Add(context.Background(), "c1", []string{"u2", "u3"}))
	assert.Len(t, m.Roster("c1"), 3)
	client.AssertExpectations(t)
}

func TestStageRemovalCreatorOnly(t *testing.T) {
	m, client, _ := newManager(t, "me", "someone-else")

	err := m.StageRemoval("c1", "u2")
	require.Error(t, err)
	assert.True(t, faults.IsAuthorization(err))
	client.AssertNotCalled(t, "RemoveParticipants", mock.Anything, mock.Anything, mock.Anything)
}

func TestStageRemovalProtectsCreator(t *testing.T) {
	m, _, _ := newManager(t, "me", "me")

	err := m.StageRemoval("c1", "me")
	require.Error(t, err)
	assert.True(t, faults.IsValidation(err))
}

func TestStageRemovalProtectsCreatorForAnyCaller(t *testing.T) {
	m, _, _ := newManager(t, "me", "someone-else")

	err := m.StageRemoval("c1", "someone-else")
	require.Error(t, err)
	assert.True(t, faults.IsValidation(err))
}

func TestStageRemovalUnknownConversation(t *testing.T) {
	m, _, _ := newManager(t, "me", "me")

	err := m.StageRemoval("ghost", "u2")
	require.Error(t, err)
	assert.True(t, faults.IsNotFound(err))
}

func TestRemovalIsTwoPhase(t *testing.T) {
	m, client, _ := newManager(t, "me", "me")

	require.NoError(t, m.StageRemoval("c1", "u2"))
	client.AssertNotCalled(t, "RemoveParticipants", mock.Anything, mock.Anything, mock.Anything)

	remaining := []models.Participant{{Matricule: "me"}}
	client.On("RemoveParticipants", mock.Anything, "c1", []string{"u2"}).
		Return(remaining, nil).Once()

	require.NoError(t, m.ConfirmRemoval(context.Background()))
	assert.Len(t, m.Roster("c1"), 1)
	client.AssertExpectations(t)
}

func TestConfirmRemovalFailureIsSurfaced(t *testing.T) {
	m, client, notifier := newManager(t, "me", "me")

	require.NoError(t, m.StageRemoval("c1", "u2"))
	client.On("RemoveParticipants", mock.Anything, "c1", []string{"u2"}).
		Return(nil, faults.Network("remove_participants", assert.AnError)).Once()
	notifier.On("Notify", notify.LevelError, mock.Anything).Return().Once()

	err := m.ConfirmRemoval(context.Background())
	require.Error(t, err)
	notifier.AssertExpectations(t)
}

func TestConfirmRemovalWithoutStageFails(t *testing.T) {
	m, client, _ := newManager(t, "me", "me")

	err := m.ConfirmRemoval(context.Background())
	require.Error(t, err)
	assert.True(t, faults.IsValidation(err))
	client.AssertNotCalled(t, "RemoveParticipants", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelRemovalDropsStagedTarget(t *testing.T) {
	m, client, _ := newManager(t, "me", "me")

	require.NoError(t, m.StageRemoval("c1", "u2"))
	m.CancelRemoval()

	err := m.ConfirmRemoval(context.Background())
	require.Error(t, err)
	assert.True(t, faults.IsValidation(err))
	client.AssertNotCalled(t, "RemoveParticipants", mock.Anything, mock.Anything, mock.Anything)
}

func TestSetRosterCopies(t *testing.T) {
	m, _, _ := newManager(t, "me", "me")

	roster := []models.Participant{{Matricule: "me"}}
	m.SetRoster("c1", roster)
	roster[0].Matricule = "mutated"

	got := m.Roster("c1")
	require.Len(t, got, 1)
	assert.Equal(t, "me", got[0].Matricule)
}
