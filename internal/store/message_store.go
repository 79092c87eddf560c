// Package store holds the in-memory message window for the single open
// conversation. The store itself is not goroutine-safe; every mutation is
// funneled through the owning session, which serializes writers.
package store

import (
	"sort"

	"messaging-core/internal/models"
)

// MessageStore keeps a deduplicated, time-ordered window of messages for
// exactly one conversation at a time. Messages are ordered oldest first by
// send time, ties broken by matricule.
type MessageStore struct {
	conversation string
	messages     []models.Message
	present      map[string]struct{}
}

// NewMessageStore returns an empty store bound to no conversation.
func NewMessageStore() *MessageStore {
	return &MessageStore{present: make(map[string]struct{})}
}

// Bind clears the store and attaches it to a conversation. Must be called
// before loading pages for a newly opened conversation.
func (s *MessageStore) Bind(conversationMatricule string) {
	s.conversation = conversationMatricule
	s.Clear()
}

// Conversation returns the matricule the store is bound to.
func (s *MessageStore) Conversation() string {
	return s.conversation
}

// Clear drops all messages but keeps the binding.
func (s *MessageStore) Clear() {
	s.messages = nil
	s.present = make(map[string]struct{})
}

// ReplaceAll swaps the whole window for a fresh page-1 load. Entries whose
// matricule was already present are effectively replaced in place, which is
// how edits and pin flips propagate from refreshes.
func (s *MessageStore) ReplaceAll(msgs []models.Message) {
	s.messages = nil
	s.present = make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if _, ok := s.present[m.Matricule]; ok {
			continue
		}
		s.present[m.Matricule] = struct{}{}
		s.messages = append(s.messages, m)
	}
	s.reorder()
}

// PrependOlder merges an older page (page > 1) into the window without
// disturbing already-loaded messages. Matricules already present are
// skipped so no load sequence can duplicate an identifier.
func (s *MessageStore) PrependOlder(msgs []models.Message) {
	changed := false
	for _, m := range msgs {
		if _, ok := s.present[m.Matricule]; ok {
			continue
		}
		s.present[m.Matricule] = struct{}{}
		s.messages = append(s.messages, m)
		changed = true
	}
	if changed {
		s.reorder()
	}
}

// Apply updates one message in place. Unknown matricules are ignored; new
// messages only enter through page loads and refreshes.
func (s *MessageStore) Apply(msg models.Message) {
	if _, ok := s.present[msg.Matricule]; !ok {
		return
	}
	for i := range s.messages {
		if s.messages[i].Matricule == msg.Matricule {
			s.messages[i] = msg
			break
		}
	}
}

// Remove drops a message from the window entirely.
func (s *MessageStore) Remove(matricule string) {
	if _, ok := s.present[matricule]; !ok {
		return
	}
	delete(s.present, matricule)
	for i := range s.messages {
		if s.messages[i].Matricule == matricule {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			break
		}
	}
}

// Get returns a message by matricule.
func (s *MessageStore) Get(matricule string) (models.Message, bool) {
	if _, ok := s.present[matricule]; !ok {
		return models.Message{}, false
	}
	for i := range s.messages {
		if s.messages[i].Matricule == matricule {
			return s.messages[i], true
		}
	}
	return models.Message{}, false
}

// Messages returns a copy of the window, oldest first.
func (s *MessageStore) Messages() []models.Message {
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len reports the number of loaded messages.
func (s *MessageStore) Len() int {
	return len(s.messages)
}

func (s *MessageStore) reorder() {
	sort.SliceStable(s.messages, func(i, j int) bool {
		return s.messages[i].Before(s.messages[j])
	})
}
