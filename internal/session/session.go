// Package session owns the state of the single open conversation: the
// message window, the roster, and the refresh-token bookkeeping that keeps
// concurrent refreshes from clobbering each other. All store writes are
// funneled through the session, which is the one serialization point the
// concurrency model requires.
package session

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"messaging-core/internal/faults"
	"messaging-core/internal/models"
	"messaging-core/internal/observability"
	"messaging-core/internal/recordapi"
	"messaging-core/internal/store"
)

// RosterFunc receives the roster that rides along with every message page.
type RosterFunc func(conversationMatricule string, roster []models.Participant)

// Session coordinates loads and refreshes for the open conversation.
//
// Staleness protocol: every page-1 refresh takes a monotonically increasing
// token before its request is issued, and a response is applied only when
// its token is newer than the last applied one and its epoch still matches.
// The epoch bumps on every Open/Close, so an in-flight response for a
// conversation that was switched away from can never touch the new store.
type Session struct {
	client   recordapi.Client
	store    *store.MessageStore
	pageSize int
	log      *zap.Logger
	onRoster RosterFunc

	mu          sync.Mutex
	flightDone  *sync.Cond
	open        string
	epoch       uint64
	lastIssued  uint64
	lastApplied uint64
	inFlight    bool
	roster      []models.Participant
}

// New builds a Session around an empty store.
func New(client recordapi.Client, pageSize int, log *zap.Logger) *Session {
	s := &Session{
		client:   client,
		store:    store.NewMessageStore(),
		pageSize: pageSize,
		log:      log,
	}
	s.flightDone = sync.NewCond(&s.mu)
	return s
}

// SetRosterHook installs the roster forwarder. Wire-time only.
func (s *Session) SetRosterHook(hook RosterFunc) {
	s.onRoster = hook
}

// Open switches the session to a conversation: the previous store is
// cleared, any in-flight refresh for it is invalidated, and page 1 is
// loaded in the foreground.
func (s *Session) Open(ctx context.Context, conversationMatricule string) error {
	s.mu.Lock()
	s.epoch++
	s.open = conversationMatricule
	s.lastIssued = 0
	s.lastApplied = 0
	s.roster = nil
	s.store.Bind(conversationMatricule)
	s.flightDone.Broadcast()
	s.mu.Unlock()

	return s.refreshPageOne(ctx, "page", true)
}

// Close detaches the session from its conversation and clears the store.
func (s *Session) Close() {
	s.mu.Lock()
	s.epoch++
	s.open = ""
	s.store.Bind("")
	s.roster = nil
	s.flightDone.Broadcast()
	s.mu.Unlock()
}

// Conversation returns the open conversation's matricule, or "".
func (s *Session) Conversation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Messages returns a copy of the loaded window, oldest first.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Messages()
}

// Get returns one loaded message by matricule.
func (s *Session) Get(matricule string) (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Get(matricule)
}

// Roster returns the most recently received participant roster.
func (s *Session) Roster() []models.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Participant, len(s.roster))
	copy(out, s.roster)
	return out
}

// LoadOlder fetches an older page (page > 1) and prepends it to the
// window. Page 1 goes through Open or ForegroundRefresh instead.
func (s *Session) LoadOlder(ctx context.Context, page int) error {
	if page <= 1 {
		return faults.Validation("older pages start at 2")
	}

	conversation, epoch, ok := s.beginFlight(true)
	if !ok {
		return faults.Validation("no conversation is open")
	}
	defer s.endFlight()

	pageData, err := s.client.GetMessages(ctx, conversation, page, s.pageSize)
	if err != nil {
		observability.IncRefresh("page", "error")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		observability.IncRefresh("page", "stale")
		observability.IncStaleResponseDropped()
		return nil
	}
	s.store.PrependOlder(pageData.Messages)
	s.applyRosterLocked(conversation, pageData.Participants)
	observability.IncRefresh("page", "ok")
	return nil
}

// SilentRefresh reloads page 1 in the background. Failures of any kind are
// swallowed and logged; this is the only operation whose failure is
// non-fatal by contract. A refresh already in flight makes this a no-op,
// which keeps ticks single-flight per conversation.
func (s *Session) SilentRefresh(ctx context.Context, conversationMatricule string) {
	s.mu.Lock()
	mismatch := s.open == "" || s.open != conversationMatricule
	s.mu.Unlock()
	if mismatch {
		return
	}

	if err := s.refreshPageOne(ctx, "silent", false); err != nil {
		observability.IncSilentRefreshSwallowed()
		s.log.Warn("silent refresh failed",
			zap.String("conversation", conversationMatricule),
			zap.Error(err),
		)
	}
}

// ForegroundRefresh reloads page 1 after a successful mutation. It waits
// for any in-flight refresh, then issues a newer token, so the result is
// sequenced after the mutation's own success response.
func (s *Session) ForegroundRefresh(ctx context.Context) error {
	return s.refreshPageOne(ctx, "foreground", true)
}

// Apply updates one loaded message in place, for mutation responses that
// return the updated entity.
func (s *Session) Apply(msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open == "" || msg.ConversationMatricule != s.open {
		return
	}
	s.store.Apply(msg)
}

// Remove drops one message from the window after a successful delete.
func (s *Session) Remove(matricule string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Remove(matricule)
}

// SearchMessages filters the open conversation's history server-side. An
// empty query returns an empty result without a collaborator call.
func (s *Session) SearchMessages(ctx context.Context, query string) ([]models.Message, error) {
	if strings.TrimSpace(query) == "" {
		return []models.Message{}, nil
	}

	s.mu.Lock()
	conversation := s.open
	s.mu.Unlock()
	if conversation == "" {
		return nil, faults.Validation("no conversation is open")
	}

	return s.client.SearchMessages(ctx, conversation, query)
}

// refreshPageOne is the shared page-1 reload: replace semantics plus the
// token/epoch staleness protocol.
func (s *Session) refreshPageOne(ctx context.Context, mode string, wait bool) error {
	conversation, epoch, ok := s.beginFlight(wait)
	if !ok {
		if mode == "silent" {
			return nil
		}
		return faults.Validation("no conversation is open")
	}
	defer s.endFlight()

	s.mu.Lock()
	s.lastIssued++
	token := s.lastIssued
	s.mu.Unlock()

	pageData, err := s.client.GetMessages(ctx, conversation, 1, s.pageSize)
	if err != nil {
		observability.IncRefresh(mode, "error")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || token <= s.lastApplied {
		observability.IncRefresh(mode, "stale")
		observability.IncStaleResponseDropped()
		return nil
	}
	s.lastApplied = token
	s.store.ReplaceAll(pageData.Messages)
	s.applyRosterLocked(conversation, pageData.Participants)
	observability.IncRefresh(mode, "ok")
	return nil
}

// beginFlight claims the single refresh slot. With wait=false the caller
// backs off when a refresh is already outstanding; with wait=true it queues
// behind it. Returns the bound conversation and the epoch to validate the
// response against.
func (s *Session) beginFlight(wait bool) (string, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.inFlight {
		if !wait {
			return "", 0, false
		}
		s.flightDone.Wait()
	}
	if s.open == "" {
		return "", 0, false
	}
	s.inFlight = true
	return s.open, s.epoch, true
}

func (s *Session) endFlight() {
	s.mu.Lock()
	s.inFlight = false
	s.flightDone.Broadcast()
	s.mu.Unlock()
}

func (s *Session) applyRosterLocked(conversationMatricule string, roster []models.Participant) {
	if len(roster) == 0 {
		return
	}
	s.roster = roster
	if s.onRoster != nil {
		go s.onRoster(conversationMatricule, roster)
	}
}
