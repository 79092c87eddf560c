package syncer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-core/internal/logger"
)

type tickRecorder struct {
	mu    sync.Mutex
	ticks []string
}

func (r *tickRecorder) refresh(ctx context.Context, conversation string) {
	r.mu.Lock()
	r.ticks = append(r.ticks, conversation)
	r.mu.Unlock()
}

func (r *tickRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ticks)
}

func (r *tickRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ticks...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestTimerTicksForFocusedConversation(t *testing.T) {
	rec := &tickRecorder{}
	s := New(20*time.Millisecond, rec.refresh, logger.NewNop())
	defer s.Stop()

	s.Start("c1")
	assert.Equal(t, Scheduled, s.CurrentState())

	waitFor(t, func() bool { return rec.count() >= 2 })
	for _, conversation := range rec.all() {
		assert.Equal(t, "c1", conversation)
	}
}

func TestStopPreventsFurtherTicks(t *testing.T) {
	rec := &tickRecorder{}
	s := New(20*time.Millisecond, rec.refresh, logger.NewNop())

	s.Start("c1")
	waitFor(t, func() bool { return rec.count() >= 1 })

	s.Stop()
	assert.Equal(t, Idle, s.CurrentState())
	assert.Equal(t, "", s.Conversation())

	settled := rec.count()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, settled, rec.count(), "tick fired after Stop")
}

func TestSwitchingConversationsRearmsTimer(t *testing.T) {
	rec := &tickRecorder{}
	s := New(20*time.Millisecond, rec.refresh, logger.NewNop())
	defer s.Stop()

	s.Start("c1")
	waitFor(t, func() bool { return rec.count() >= 1 })

	s.Start("c2")
	before := len(rec.all())
	waitFor(t, func() bool { return rec.count() > before })

	ticks := rec.all()
	for _, conversation := range ticks[before:] {
		assert.Equal(t, "c2", conversation, "tick for the previous conversation after switch")
	}
}

func TestSuspendAndResume(t *testing.T) {
	rec := &tickRecorder{}
	s := New(20*time.Millisecond, rec.refresh, logger.NewNop())
	defer s.Stop()

	s.Start("c1")
	waitFor(t, func() bool { return rec.count() >= 1 })

	s.Suspend()
	require.Equal(t, Suspended, s.CurrentState())
	assert.Equal(t, "c1", s.Conversation())

	settled := rec.count()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, settled, rec.count(), "tick fired while suspended")

	s.Resume()
	assert.Equal(t, Scheduled, s.CurrentState())
	waitFor(t, func() bool { return rec.count() > settled })
}

func TestResumeWithoutSuspendIsNoop(t *testing.T) {
	rec := &tickRecorder{}
	s := New(20*time.Millisecond, rec.refresh, logger.NewNop())

	s.Resume()
	assert.Equal(t, Idle, s.CurrentState())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
}
