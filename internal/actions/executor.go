// Package actions executes user-initiated mutations and reconciles local
// state from the collaborator's responses.
package actions

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
	"messaging-core/internal/session"
	"messaging-core/internal/telemetry"
)

// ComposeStatus is the per-action state machine.
type ComposeStatus int

const (
	Composing ComposeStatus = iota
	Submitting
	Succeeded
	Failed
)

// Compose is the pending input state: the draft, staged attachments, and
// the reply or edit target. Reply and edit are mutually exclusive.
type Compose struct {
	Status      ComposeStatus
	Draft       string
	Attachments []recordapi.AttachmentUpload
	ReplyTo     *models.Message
	Editing     *models.Message
}

// Executor runs sends, edits, deletes, pins and the surrounding compose
// bookkeeping. Typed content survives every failure; only success clears it.
type Executor struct {
	client         recordapi.Client
	session        *session.Session
	directory      *directory.Directory
	notifier       notify.Notifier
	audit          *telemetry.AuditEmitter
	log            *zap.Logger
	userMatricule  string
	maxAttachments int

	mu            sync.Mutex
	compose       Compose
	pendingDelete string
}

// NewExecutor wires an Executor.
func NewExecutor(
	client recordapi.Client,
	sess *session.Session,
	dir *directory.Directory,
	notifier notify.Notifier,
	audit *telemetry.AuditEmitter,
	userMatricule string,
	maxAttachments int,
	log *zap.Logger,
) *Executor {
	if maxAttachments <= 0 {
		maxAttachments = 5
	}
	return &Executor{
		client:         client,
		session:        sess,
		directory:      dir,
		notifier:       notifier,
		audit:          audit,
		log:            log,
		userMatricule:  userMatricule,
		maxAttachments: maxAttachments,
	}
}

// Compose returns a snapshot of the compose state.
func (e *Executor) Compose() Compose {
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot := e.compose
	snapshot.Attachments = append([]recordapi.AttachmentUpload(nil), e.compose.Attachments...)
	return snapshot
}

// SetDraft replaces the typed content.
func (e *Executor) SetDraft(text string) {
	e.mu.Lock()
	e.compose.Draft = text
	e.mu.Unlock()
}

// Attach stages a file for the next send. The cap is enforced here, before
// the attachment ever reaches a network call.
func (e *Executor) Attach(upload recordapi.AttachmentUpload) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.compose.Attachments) >= e.maxAttachments {
		return faults.Validation("at most %d attachments per message", e.maxAttachments)
	}
	e.compose.Attachments = append(e.compose.Attachments, upload)
	return nil
}

// Reply sets the reply target for the next send and clears any edit in
// progress.
func (e *Executor) Reply(msg models.Message) {
	e.mu.Lock()
	target := msg
	e.compose.ReplyTo = &target
	e.compose.Editing = nil
	e.mu.Unlock()
}

// StartEdit enters edit mode for a message the user sent. Clears any reply
// target and preloads the draft with the current content.
func (e *Executor) StartEdit(msg models.Message) error {
	if !msg.CanEdit || msg.SenderMatricule != e.userMatricule {
		return faults.Authorization("only the original sender can edit a message")
	}

	e.mu.Lock()
	target := msg
	e.compose.Editing = &target
	e.compose.ReplyTo = nil
	if msg.Content != nil {
		e.compose.Draft = *msg.Content
	}
	e.mu.Unlock()
	return nil
}

// CancelCompose drops the draft, staged attachments and any reply or edit
// target.
func (e *Executor) CancelCompose() {
	e.mu.Lock()
	e.compose = Compose{}
	e.mu.Unlock()
}

// Send submits the compose state: an edit when edit mode is active,
// otherwise a new message with the staged attachments and reply target.
// Validation happens before any collaborator call.
func (e *Executor) Send(ctx context.Context) error {
	e.mu.Lock()
	snapshot := e.compose
	e.compose.Status = Submitting
	e.mu.Unlock()

	var err error
	if snapshot.Editing != nil {
		err = e.submitEdit(ctx, snapshot)
	} else {
		err = e.submitSend(ctx, snapshot)
	}

	if err != nil {
		e.fail("send", err)
		return err
	}

	// Succeeded is transient: success clears the compose state and lands
	// back in Composing for the next message.
	e.mu.Lock()
	e.compose = Compose{Status: Composing}
	e.mu.Unlock()
	observability.IncAction("send", "ok")
	return nil
}

func (e *Executor) submitSend(ctx context.Context, snapshot Compose) error {
	conversation := e.session.Conversation()
	if conversation == "" {
		return faults.Validation("no conversation is open")
	}
	if conv, ok := e.directory.Get(conversation); ok && conv.IsArchived() {
		return faults.Validation("cannot send to an archived conversation")
	}
	if strings.TrimSpace(snapshot.Draft) == "" && len(snapshot.Attachments) == 0 {
		return faults.Validation("a message needs content or at least one attachment")
	}
	if len(snapshot.Attachments) > e.maxAttachments {
		return faults.Validation("at most %d attachments per message", e.maxAttachments)
	}

	req := recordapi.SendMessageRequest{
		ConversationMatricule: conversation,
		Content:               snapshot.Draft,
		Attachments:           snapshot.Attachments,
	}
	if snapshot.ReplyTo != nil {
		req.ParentMatricule = snapshot.ReplyTo.Matricule
	}

	if err := e.client.SendMessage(ctx, req); err != nil {
		return err
	}

	e.audit.Emit(ctx, e.userMatricule, telemetry.AuditPayload{
		Action:                "send",
		ConversationMatricule: conversation,
	})
	e.reconcile(ctx, conversation)
	return nil
}

func (e *Executor) submitEdit(ctx context.Context, snapshot Compose) error {
	if strings.TrimSpace(snapshot.Draft) == "" {
		return faults.Validation("edited content cannot be empty")
	}

	updated, err := e.client.EditMessage(ctx, snapshot.Editing.Matricule, snapshot.Draft)
	if err != nil {
		return err
	}

	e.session.Apply(updated)
	e.audit.Emit(ctx, e.userMatricule, telemetry.AuditPayload{
		Action:                "edit",
		ConversationMatricule: updated.ConversationMatricule,
		MessageMatricule:      updated.Matricule,
	})
	e.reconcile(ctx, updated.ConversationMatricule)
	return nil
}

// StageDelete records the delete target; the destructive call happens only
// on ConfirmDelete. Moderation privilege is checked up front.
func (e *Executor) StageDelete(messageMatricule string) error {
	msg, ok := e.session.Get(messageMatricule)
	if !ok {
		return faults.NotFound("message", messageMatricule)
	}
	if !msg.CanModerate {
		return faults.Authorization("deleting messages requires moderation rights")
	}

	e.mu.Lock()
	e.pendingDelete = messageMatricule
	e.mu.Unlock()
	return nil
}

// CancelDelete drops the staged delete.
func (e *Executor) CancelDelete() {
	e.mu.Lock()
	e.pendingDelete = ""
	e.mu.Unlock()
}

// ConfirmDelete removes the staged message from the collaborator and the
// store. No tombstone remains; the audit trail carries the record.
func (e *Executor) ConfirmDelete(ctx context.Context) error {
	e.mu.Lock()
	target := e.pendingDelete
	e.pendingDelete = ""
	e.mu.Unlock()
	if target == "" {
		return faults.Validation("no delete is staged")
	}

	if err := e.client.DeleteMessage(ctx, target); err != nil {
		e.fail("delete", err)
		return err
	}

	conversation := e.session.Conversation()
	e.session.Remove(target)
	e.audit.Emit(ctx, e.userMatricule, telemetry.AuditPayload{
		Action:                "delete",
		ConversationMatricule: conversation,
		MessageMatricule:      target,
	})
	e.reconcile(ctx, conversation)
	observability.IncAction("delete", "ok")
	return nil
}

// TogglePin flips a message's pinned flag. Toggling twice restores the
// original state.
func (e *Executor) TogglePin(ctx context.Context, messageMatricule string) error {
	msg, ok := e.session.Get(messageMatricule)
	if !ok {
		return faults.NotFound("message", messageMatricule)
	}
	if !msg.CanModerate {
		return faults.Authorization("pinning requires moderation rights")
	}

	updated, err := e.client.TogglePin(ctx, messageMatricule)
	if err != nil {
		e.fail("toggle_pin", err)
		return err
	}

	e.session.Apply(updated)
	e.audit.Emit(ctx, e.userMatricule, telemetry.AuditPayload{
		Action:                "toggle_pin",
		ConversationMatricule: updated.ConversationMatricule,
		MessageMatricule:      updated.Matricule,
	})
	e.reconcile(ctx, updated.ConversationMatricule)
	observability.IncAction("toggle_pin", "ok")
	return nil
}

// fail surfaces a foreground failure and returns the compose state to
// Composing without touching the typed content.
func (e *Executor) fail(action string, err error) {
	// Failed is transient as well: after the notification the compose
	// state is back in Composing with the draft intact.
	e.mu.Lock()
	e.compose.Status = Composing
	e.mu.Unlock()

	observability.IncAction(action, "error")
	e.notifier.Notify(notify.LevelError, err.Error())
	e.log.Warn("action failed", zap.String("action", action), zap.Error(err))
}

// reconcile refreshes the open conversation and the directory after a
// successful mutation. Refresh failures here are logged, not surfaced: the
// mutation itself succeeded and the next refresh self-corrects.
func (e *Executor) reconcile(ctx context.Context, conversationMatricule string) {
	if conversationMatricule == e.session.Conversation() {
		if err := e.session.ForegroundRefresh(ctx); err != nil {
			e.log.Warn("post-action refresh failed", zap.Error(err))
		}
	}
	if err := e.directory.Refresh(ctx); err != nil {
		e.log.Warn("post-action directory refresh failed", zap.Error(err))
	}
}
