package recordstub

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"messaging-core/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// CreateMessageParams is the insert shape for new messages.
type CreateMessageParams struct {
	ConversationMatricule string
	SenderMatricule       string
	Content               *string
	Type                  models.MessageType
	ParentMatricule       *string
	Attachments           []models.Attachment
}

// MessageRepository abstracts message persistence for the stub.
type MessageRepository interface {
	Page(ctx context.Context, conversationMatricule string, page, limit int) ([]models.Message, bool, error)
	Get(ctx context.Context, matricule string) (models.Message, error)
	Create(ctx context.Context, params CreateMessageParams) (models.Message, error)
	UpdateContent(ctx context.Context, matricule, content string) (models.Message, error)
	Delete(ctx context.Context, matricule string) error
	TogglePin(ctx context.Context, matricule string) (models.Message, error)
	Search(ctx context.Context, conversationMatricule, query string) ([]models.Message, error)
	MarkRead(ctx context.Context, conversationMatricule, readerMatricule string) error
}

// MessageRepo is the sqlx implementation of MessageRepository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `matricule, conversation_matricule, sender_matricule, content, type, parent_matricule, pinned, edited, read_status, sent_at`

// Page returns the page-th newest window of messages, oldest first within
// the window, plus whether older messages remain.
func (r *MessageRepo) Page(ctx context.Context, conversationMatricule string, page, limit int) ([]models.Message, bool, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	query := `SELECT ` + messageColumns + ` FROM messages
        WHERE conversation_matricule=$1
        ORDER BY sent_at DESC, matricule DESC
        LIMIT $2 OFFSET $3`

	var msgs []models.Message
	if err := r.db.SelectContext(ctx, &msgs, query, conversationMatricule, limit, offset); err != nil {
		return nil, false, err
	}

	// Flip the window into ascending order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM messages WHERE conversation_matricule=$1`, conversationMatricule); err != nil {
		return nil, false, err
	}

	if err := r.loadAttachments(ctx, msgs); err != nil {
		return nil, false, err
	}
	return msgs, total > page*limit, nil
}

// Get retrieves a single message with its attachments.
func (r *MessageRepo) Get(ctx context.Context, matricule string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE matricule=$1`, matricule)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}

	msgs := []models.Message{msg}
	if err := r.loadAttachments(ctx, msgs); err != nil {
		return models.Message{}, err
	}
	return msgs[0], nil
}

// Create stores a message and its attachment metadata.
func (r *MessageRepo) Create(ctx context.Context, params CreateMessageParams) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	matricule := uuid.NewString()
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (matricule, conversation_matricule, sender_matricule, content, type, parent_matricule, sent_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		matricule, params.ConversationMatricule, params.SenderMatricule,
		params.Content, params.Type, params.ParentMatricule, now); err != nil {
		return models.Message{}, err
	}

	for _, att := range params.Attachments {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO attachments (message_matricule, name, url, size, mime_type) VALUES ($1, $2, $3, $4, $5)`,
			matricule, att.Name, att.URL, att.Size, att.MimeType); err != nil {
			return models.Message{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}

	return models.Message{
		Matricule:             matricule,
		ConversationMatricule: params.ConversationMatricule,
		SenderMatricule:       params.SenderMatricule,
		Content:               params.Content,
		Type:                  params.Type,
		ParentMatricule:       params.ParentMatricule,
		ReadStatus:            models.ReadStatusSent,
		Attachments:           params.Attachments,
		SentAt:                now,
	}, nil
}

// UpdateContent rewrites the content and marks the message edited. Ordering
// and the send timestamp stay untouched.
func (r *MessageRepo) UpdateContent(ctx context.Context, matricule, content string) (models.Message, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET content=$2, edited=TRUE WHERE matricule=$1`, matricule, content)
	if err != nil {
		return models.Message{}, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return models.Message{}, err
	}
	if count == 0 {
		return models.Message{}, ErrMessageNotFound
	}
	return r.Get(ctx, matricule)
}

// Delete removes a message outright.
func (r *MessageRepo) Delete(ctx context.Context, matricule string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE matricule=$1`, matricule)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// TogglePin flips the pinned flag.
func (r *MessageRepo) TogglePin(ctx context.Context, matricule string) (models.Message, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET pinned = NOT pinned WHERE matricule=$1`, matricule)
	if err != nil {
		return models.Message{}, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return models.Message{}, err
	}
	if count == 0 {
		return models.Message{}, ErrMessageNotFound
	}
	return r.Get(ctx, matricule)
}

// Search filters a conversation's messages by content substring.
func (r *MessageRepo) Search(ctx context.Context, conversationMatricule, query string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages
         WHERE conversation_matricule=$1 AND content ILIKE '%' || $2 || '%'
         ORDER BY sent_at ASC, matricule ASC`,
		conversationMatricule, query)
	if err != nil {
		return nil, err
	}
	if err := r.loadAttachments(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkRead flips unread messages from other senders to read for a reader
// loading page 1.
func (r *MessageRepo) MarkRead(ctx context.Context, conversationMatricule, readerMatricule string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE messages SET read_status='read'
         WHERE conversation_matricule=$1 AND sender_matricule<>$2 AND read_status='sent'`,
		conversationMatricule, readerMatricule)
	return err
}

func (r *MessageRepo) loadAttachments(ctx context.Context, msgs []models.Message) error {
	for i := range msgs {
		var attachments []models.Attachment
		if err := r.db.SelectContext(ctx, &attachments,
			`SELECT name, url, size, mime_type FROM attachments WHERE message_matricule=$1 ORDER BY id ASC`,
			msgs[i].Matricule); err != nil {
			return err
		}
		msgs[i].Attachments = attachments
	}
	return nil
}
