// Package directory maintains the list of conversations visible to the
// current user, independent of which conversation is open.
package directory

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"messaging-core/internal/faults"
	"messaging-core/internal/models"
	"messaging-core/internal/notify"
	"messaging-core/internal/recordapi"
)

// Directory holds conversation summaries and the active selection.
type Directory struct {
	client        recordapi.Client
	userMatricule string
	notifier      notify.Notifier
	log           *zap.Logger

	mu            sync.RWMutex
	conversations []models.Conversation
	active        string

	// onDeactivate runs when the active selection is cleared by archiving,
	// so the session can tear down the open conversation.
	onDeactivate func(conversationMatricule string)
}

// New builds a Directory for the given user.
func New(client recordapi.Client, userMatricule string, notifier notify.Notifier, log *zap.Logger) *Directory {
	return &Directory{
		client:        client,
		userMatricule: userMatricule,
		notifier:      notifier,
		log:           log,
	}
}

// surface makes a foreground failure user-visible. Background refreshes
// never come through here.
func (d *Directory) surface(action string, err error) {
	d.notifier.Notify(notify.LevelError, err.Error())
	d.log.Warn("directory action failed", zap.String("action", action), zap.Error(err))
}

// SetDeactivateHook installs the callback invoked when archiving clears the
// active selection. Must be called during wiring, before concurrent use.
func (d *Directory) SetDeactivateHook(hook func(conversationMatricule string)) {
	d.onDeactivate = hook
}

// Refresh re-fetches the full conversation list and replaces prior entries
// wholesale. Partial merges are deliberately avoided; a stale field on one
// entry would otherwise survive a refresh.
func (d *Directory) Refresh(ctx context.Context) error {
	conversations, err := d.client.ListConversations(ctx)
	if err != nil {
		return err
	}

	sortByActivity(conversations)

	d.mu.Lock()
	d.conversations = conversations
	d.mu.Unlock()
	return nil
}

// List returns the conversation summaries ordered by last activity,
// most recent first.
func (d *Directory) List() []models.Conversation {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Conversation, len(d.conversations))
	copy(out, d.conversations)
	return out
}

// Get looks a conversation up by matricule.
func (d *Directory) Get(matricule string) (models.Conversation, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, c := range d.conversations {
		if c.Matricule == matricule {
			return c, true
		}
	}
	return models.Conversation{}, false
}

// Active returns the matricule of the selected conversation, or "".
func (d *Directory) Active() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.active
}

// Select marks a conversation as the active one and zeroes its local
// unread counter; the collaborator's count is reconciled on next refresh.
func (d *Directory) Select(matricule string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = matricule
	for i := range d.conversations {
		if d.conversations[i].Matricule == matricule {
			d.conversations[i].UnreadCount = 0
			break
		}
	}
}

// ClearActive drops the selection without side effects.
func (d *Directory) ClearActive() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = ""
}

// StartConversation creates a conversation with at least one other
// participant, inserts it into the directory and makes it active.
func (d *Directory) StartConversation(ctx context.Context, participantMatricules []string) (models.ConversationDetail, error) {
	if len(participantMatricules) == 0 {
		err := faults.Validation("a conversation needs at least one other participant")
		d.surface("start_conversation", err)
		return models.ConversationDetail{}, err
	}

	detail, err := d.client.StartConversation(ctx, participantMatricules)
	if err != nil {
		d.surface("start_conversation", err)
		return models.ConversationDetail{}, err
	}

	d.mu.Lock()
	d.conversations = append([]models.Conversation{detail.Conversation}, d.conversations...)
	sortByActivity(d.conversations)
	d.active = detail.Conversation.Matricule
	d.mu.Unlock()

	d.log.Info("conversation started",
		zap.String("conversation", detail.Conversation.Matricule),
		zap.Int("participants", len(detail.Participants)),
	)
	return detail, nil
}

// ToggleArchive flips a conversation between active and archived. Only the
// creator may do this. Archiving the open conversation clears the active
// selection and fires the deactivate hook.
func (d *Directory) ToggleArchive(ctx context.Context, conversationMatricule string) (models.Conversation, error) {
	current, ok := d.Get(conversationMatricule)
	if !ok {
		err := faults.NotFound("conversation", conversationMatricule)
		d.surface("toggle_archive", err)
		return models.Conversation{}, err
	}
	if current.CreatorMatricule != d.userMatricule {
		err := faults.Authorization("only the creator can archive or restore a conversation")
		d.surface("toggle_archive", err)
		return models.Conversation{}, err
	}

	updated, err := d.client.ToggleArchive(ctx, conversationMatricule)
	if err != nil {
		d.surface("toggle_archive", err)
		return models.Conversation{}, err
	}

	var deactivated bool
	d.mu.Lock()
	for i := range d.conversations {
		if d.conversations[i].Matricule == conversationMatricule {
			d.conversations[i] = updated
			break
		}
	}
	if updated.IsArchived() && d.active == conversationMatricule {
		d.active = ""
		deactivated = true
	}
	d.mu.Unlock()

	if deactivated && d.onDeactivate != nil {
		d.onDeactivate(conversationMatricule)
	}
	return updated, nil
}

func sortByActivity(conversations []models.Conversation) {
	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].LastActivityAt.After(conversations[j].LastActivityAt)
	})
}
