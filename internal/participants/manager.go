// Package participants manages conversation membership and enforces the
// creator's exclusive right to structural changes.
package participants

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"messaging-core/internal/directory"
	"messaging-core/internal/faults"
	"messaging-core/internal/models"
	"messaging-core/internal/notify"
	"messaging-core/internal/observability"
	"messaging-core/internal/recordapi"
	"messaging-core/internal/telemetry"
)

// Manager tracks rosters and runs membership changes.
type Manager struct {
	client        recordapi.Client
	directory     *directory.Directory
	audit         *telemetry.AuditEmitter
	notifier      notify.Notifier
	log           *zap.Logger
	userMatricule string

	mu      sync.Mutex
	rosters map[string][]models.Participant
	pending *stagedRemoval
}

type stagedRemoval struct {
	conversation string
	target       string
}

// NewManager wires a Manager.
func NewManager(client recordapi.Client, dir *directory.Directory, audit *telemetry.AuditEmitter, notifier notify.Notifier, userMatricule string, log *zap.Logger) *Manager {
	return &Manager{
		client:        client,
		directory:     dir,
		audit:         audit,
		notifier:      notifier,
		log:           log,
		userMatricule: userMatricule,
		rosters:       make(map[string][]models.Participant),
	}
}

// surface makes a membership-change failure user-visible.
func (m *Manager) surface(action string, err error) {
	m.notifier.Notify(notify.LevelError, err.Error())
	m.log.Warn("membership action failed", zap.String("action", action), zap.Error(err))
}

// SetRoster stores the roster that arrived with a message page.
func (m *Manager) SetRoster(conversationMatricule string, roster []models.Participant) {
	m.mu.Lock()
	m.rosters[conversationMatricule] = append([]models.Participant(nil), roster...)
	m.mu.Unlock()
}

// Roster returns the known roster for a conversation.
func (m *Manager) Roster(conversationMatricule string) []models.Participant {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Participant(nil), m.rosters[conversationMatricule]...)
}

// Search looks up candidate participants. An empty query returns an empty
// sequence without a collaborator call; there is no implicit
// "list everyone".
func (m *Manager) Search(ctx context.Context, query, roleFilter, scopeFilter string) ([]models.Participant, error) {
	if strings.TrimSpace(query) == "" {
		return []models.Participant{}, nil
	}
	return m.client.SearchUsers(ctx, query, roleFilter, scopeFilter)
}

// Add appends new participants to a conversation and refreshes the
// directory so the participant count stays fresh.
func (m *Manager) Add(ctx context.Context, conversationMatricule string, matricules []string) error {
	if len(matricules) == 0 {
		err := faults.Validation("select at least one participant to add")
		m.surface("add_participants", err)
		return err
	}

	roster, err := m.client.AddParticipants(ctx, conversationMatricule, matricules)
	if err != nil {
		observability.IncAction("add_participants", "error")
		m.surface("add_participants", err)
		return err
	}

	m.SetRoster(conversationMatricule, roster)
	m.audit.Emit(ctx, m.userMatricule, telemetry.AuditPayload{
		Action:                "add_participants",
		ConversationMatricule: conversationMatricule,
		TargetMatricule:       strings.Join(matricules, ","),
	})
	observability.IncAction("add_participants", "ok")

	if err := m.directory.Refresh(ctx); err != nil {
		m.log.Warn("directory refresh after add failed", zap.Error(err))
	}
	return nil
}

// StageRemoval validates a removal and records it for confirmation. The
// destructive call only happens in ConfirmRemoval; selecting the target and
// confirming are deliberately separate steps.
func (m *Manager) StageRemoval(conversationMatricule, targetMatricule string) error {
	conv, ok := m.directory.Get(conversationMatricule)
	if !ok {
		return faults.NotFound("conversation", conversationMatricule)
	}
	// The creator is never a valid target, no matter who asks.
	if targetMatricule == conv.CreatorMatricule {
		return faults.Validation("the creator cannot be removed from their conversation")
	}
	if conv.CreatorMatricule != m.userMatricule {
		return faults.Authorization("only the creator can remove participants")
	}

	m.mu.Lock()
	m.pending = &stagedRemoval{conversation: conversationMatricule, target: targetMatricule}
	m.mu.Unlock()
	return nil
}

// CancelRemoval drops the staged removal.
func (m *Manager) CancelRemoval() {
	m.mu.Lock()
	m.pending = nil
	m.mu.Unlock()
}

// ConfirmRemoval executes the staged removal.
func (m *Manager) ConfirmRemoval(ctx context.Context) error {
	m.mu.Lock()
	staged := m.pending
	m.pending = nil
	m.mu.Unlock()
	if staged == nil {
		return faults.Validation("no removal is staged")
	}

	roster, err := m.client.RemoveParticipants(ctx, staged.conversation, []string{staged.target})
	if err != nil {
		observability.IncAction("remove_participant", "error")
		m.surface("remove_participant", err)
		return err
	}

	m.SetRoster(staged.conversation, roster)
	m.audit.Emit(ctx, m.userMatricule, telemetry.AuditPayload{
		Action:                "remove_participant",
		ConversationMatricule: staged.conversation,
		TargetMatricule:       staged.target,
	})
	observability.IncAction("remove_participant", "ok")

	if err := m.directory.Refresh(ctx); err != nil {
		m.log.Warn("directory refresh after removal failed", zap.Error(err))
	}
	return nil
}
