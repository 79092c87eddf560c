// Package syncer drives the periodic silent refresh of the open
// conversation.
package syncer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"messaging-core/internal/observability"
)

// State is the scheduler's lifecycle state.
type State int

const (
	// Idle means no conversation is focused and no timer is armed.
	Idle State = iota
	// Scheduled means the timer is armed for the focused conversation.
	Scheduled
	// Suspended means a conversation is focused but ticking is paused.
	Suspended
)

// RefreshFunc performs one silent refresh for the given conversation. The
// context is cancelled when the scheduler re-arms or stops, aborting any
// in-flight request for a conversation that is no longer displayed.
type RefreshFunc func(ctx context.Context, conversationMatricule string)

// Scheduler arms one recurring timer for the single focused conversation.
// Ticks run synchronously inside the timer goroutine, so a tick can never
// start while the previous one is still in flight.
type Scheduler struct {
	interval time.Duration
	refresh  RefreshFunc
	log      *zap.Logger

	mu           sync.Mutex
	state        State
	conversation string
	generation   uint64
	cancel       context.CancelFunc
}

// New builds a Scheduler in the Idle state.
func New(interval time.Duration, refresh RefreshFunc, log *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Scheduler{interval: interval, refresh: refresh, log: log}
}

// Start arms the timer for a conversation, cancelling any prior timer
// first. Switching conversations is Start with a new matricule.
func (s *Scheduler) Start(conversationMatricule string) {
	s.mu.Lock()
	s.cancelLocked()
	s.state = Scheduled
	s.conversation = conversationMatricule
	s.generation++
	gen := s.generation

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	observability.SetSchedulerActive(true)
	s.log.Debug("refresh timer armed",
		zap.String("conversation", conversationMatricule),
		zap.Duration("interval", s.interval),
	)

	go s.loop(ctx, conversationMatricule, gen)
}

// Stop cancels the timer and returns to Idle. No tick fires after Stop
// returns; a tick already executing is aborted through its context and its
// response is discarded by the session's staleness check.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancelLocked()
	s.state = Idle
	s.conversation = ""
	s.mu.Unlock()
	observability.SetSchedulerActive(false)
}

// Suspend pauses ticking while keeping the focused conversation, for
// navigation away without deselecting.
func (s *Scheduler) Suspend() {
	s.mu.Lock()
	if s.state != Scheduled {
		s.mu.Unlock()
		return
	}
	s.cancelLocked()
	s.state = Suspended
	s.mu.Unlock()
	observability.SetSchedulerActive(false)
}

// Resume re-arms the timer for the conversation Suspend kept.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	if s.state != Suspended || s.conversation == "" {
		s.mu.Unlock()
		return
	}
	conversation := s.conversation
	s.mu.Unlock()
	s.Start(conversation)
}

// CurrentState reports the scheduler state.
func (s *Scheduler) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Conversation reports the focused conversation, or "".
func (s *Scheduler) Conversation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversation
}

func (s *Scheduler) loop(ctx context.Context, conversationMatricule string, gen uint64) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.current(gen) {
				return
			}
			s.refresh(ctx, conversationMatricule)
		}
	}
}

// current checks that this loop's generation is still the armed one, so a
// tick racing a Start/Stop cannot fire for a stale conversation.
func (s *Scheduler) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == gen && s.state == Scheduled
}

func (s *Scheduler) cancelLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
}
