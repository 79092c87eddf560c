package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-core/internal/models"
)

func msg(matricule string, at time.Time, content string) models.Message {
	return models.Message{
		Matricule:             matricule,
		ConversationMatricule: "c1",
		SenderMatricule:       "u1",
		Content:               &content,
		Type:                  models.MessageText,
		ReadStatus:            models.ReadStatusSent,
		SentAt:                at,
	}
}

func TestReplaceAllOrdersAndDeduplicates(t *testing.T) {
	s := NewMessageStore()
	s.Bind("c1")

	base := time.Now()
	s.ReplaceAll([]models.Message{
		msg("m2", base.Add(2*time.Second), "two"),
		msg("m1", base.Add(1*time.Second), "one"),
		msg("m2", base.Add(2*time.Second), "two again"),
	})

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].Matricule)
	assert.Equal(t, "m2", msgs[1].Matricule)
}

func TestRefreshReplacesEditedEntryWithoutDuplicating(t *testing.T) {
	s := NewMessageStore()
	s.Bind("c1")

	base := time.Now()
	s.ReplaceAll([]models.Message{
		msg("m1", base.Add(1*time.Second), "hello"),
		msg("m2", base.Add(2*time.Second), "world"),
	})
	require.Equal(t, 2, s.Len())

	// Server-side edit of m1 plus a new m3 arrive via refresh.
	edited := msg("m1", base.Add(1*time.Second), "hello edited")
	edited.Edited = true
	s.ReplaceAll([]models.Message{
		edited,
		msg("m2", base.Add(2*time.Second), "world"),
		msg("m3", base.Add(3*time.Second), "new"),
	})

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, matricules(msgs))
	assert.True(t, msgs[0].Edited)
	assert.Equal(t, "hello edited", *msgs[0].Content)
}

func TestPrependOlderKeepsLoadedWindowAndSkipsKnownIDs(t *testing.T) {
	s := NewMessageStore()
	s.Bind("c1")

	base := time.Now()
	s.ReplaceAll([]models.Message{
		msg("m5", base.Add(5*time.Second), "five"),
		msg("m6", base.Add(6*time.Second), "six"),
	})

	s.PrependOlder([]models.Message{
		msg("m3", base.Add(3*time.Second), "three"),
		msg("m4", base.Add(4*time.Second), "four"),
		msg("m5", base.Add(5*time.Second), "five dup"),
	})

	msgs := s.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, []string{"m3", "m4", "m5", "m6"}, matricules(msgs))
	assert.Equal(t, "five", *msgs[2].Content)
}

func TestNoSequenceOfLoadsDuplicatesAnIdentifier(t *testing.T) {
	s := NewMessageStore()
	s.Bind("c1")

	base := time.Now()
	var page1, page2 []models.Message
	for i := 5; i < 10; i++ {
		page1 = append(page1, msg(fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Second), "x"))
	}
	for i := 0; i < 7; i++ {
		page2 = append(page2, msg(fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Second), "x"))
	}

	s.ReplaceAll(page1)
	s.PrependOlder(page2)
	s.PrependOlder(page2)
	s.ReplaceAll(page1)
	s.PrependOlder(page2)

	seen := map[string]int{}
	for _, m := range s.Messages() {
		seen[m.Matricule]++
	}
	for matricule, count := range seen {
		assert.Equal(t, 1, count, "duplicate matricule %s", matricule)
	}
	assert.Equal(t, 10, s.Len())
}

func TestTiesBrokenByMatricule(t *testing.T) {
	s := NewMessageStore()
	s.Bind("c1")

	at := time.Now()
	s.ReplaceAll([]models.Message{
		msg("mb", at, "b"),
		msg("ma", at, "a"),
	})

	assert.Equal(t, []string{"ma", "mb"}, matricules(s.Messages()))
}

func TestApplyAndRemove(t *testing.T) {
	s := NewMessageStore()
	s.Bind("c1")

	base := time.Now()
	s.ReplaceAll([]models.Message{
		msg("m1", base.Add(1*time.Second), "one"),
		msg("m2", base.Add(2*time.Second), "two"),
	})

	pinned := msg("m1", base.Add(1*time.Second), "one")
	pinned.Pinned = true
	s.Apply(pinned)

	got, ok := s.Get("m1")
	require.True(t, ok)
	assert.True(t, got.Pinned)

	// Unknown matricules are ignored.
	s.Apply(msg("m9", base, "ghost"))
	assert.Equal(t, 2, s.Len())

	s.Remove("m1")
	assert.Equal(t, 1, s.Len())
	_, ok = s.Get("m1")
	assert.False(t, ok)

	s.Remove("m1")
	assert.Equal(t, 1, s.Len())
}

func TestBindClearsStore(t *testing.T) {
	s := NewMessageStore()
	s.Bind("c1")
	s.ReplaceAll([]models.Message{msg("m1", time.Now(), "one")})

	s.Bind("c2")
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, "c2", s.Conversation())
}

func matricules(msgs []models.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Matricule)
	}
	return out
}
