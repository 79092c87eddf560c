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

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrUserNotFound         = errors.New("user not found")
)

// ConversationRepository abstracts conversation persistence for the stub.
type ConversationRepository interface {
	ListForUser(ctx context.Context, userMatricule string) ([]models.Conversation, error)
	Get(ctx context.Context, matricule string) (models.Conversation, error)
	IsParticipant(ctx context.Context, matricule, userMatricule string) (bool, error)
	Create(ctx context.Context, creatorMatricule string, participantMatricules []string) (models.Conversation, error)
	ToggleArchive(ctx context.Context, matricule string) (models.Conversation, error)
	AddParticipants(ctx context.Context, matricule string, userMatricules []string) error
	RemoveParticipants(ctx context.Context, matricule string, userMatricules []string) error
	Roster(ctx context.Context, matricule string) ([]models.Participant, error)
	TouchActivity(ctx context.Context, matricule string, at time.Time) error
}

// ConversationRepo is the sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

type conversationRow struct {
	Matricule        string    `db:"matricule"`
	CreatorMatricule string    `db:"creator_matricule"`
	Status           string    `db:"status"`
	LastActivityAt   time.Time `db:"last_activity_at"`
	ParticipantCount int       `db:"participant_count"`
	UnreadCount      int       `db:"unread_count"`
	PreviewContent   *string   `db:"preview_content"`
	PreviewType      *string   `db:"preview_type"`
}

func (r conversationRow) toModel() models.Conversation {
	conv := models.Conversation{
		Matricule:        r.Matricule,
		CreatorMatricule: r.CreatorMatricule,
		Status:           models.ConversationStatus(r.Status),
		ParticipantCount: r.ParticipantCount,
		LastActivityAt:   r.LastActivityAt,
		UnreadCount:      r.UnreadCount,
	}
	if r.PreviewType != nil {
		last := models.Message{Content: r.PreviewContent, Type: models.MessageType(*r.PreviewType)}
		summary := last.Summary()
		conv.LastMessage = &summary
	}
	return conv
}

// ListForUser returns conversation summaries visible to the user, newest
// activity first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userMatricule string) ([]models.Conversation, error) {
	query := `SELECT c.matricule, c.creator_matricule, c.status, c.last_activity_at,
            (SELECT COUNT(*) FROM conversation_participants cp2 WHERE cp2.conversation_matricule = c.matricule) AS participant_count,
            (SELECT COUNT(*) FROM messages m WHERE m.conversation_matricule = c.matricule
                AND m.read_status = 'sent' AND m.sender_matricule <> $1) AS unread_count,
            last_msg.content AS preview_content,
            last_msg.type AS preview_type
        FROM conversations c
        JOIN conversation_participants cp ON cp.conversation_matricule = c.matricule AND cp.user_matricule = $1
        LEFT JOIN LATERAL (
            SELECT m.content, m.type FROM messages m
            WHERE m.conversation_matricule = c.matricule
            ORDER BY m.sent_at DESC, m.matricule DESC LIMIT 1
        ) last_msg ON TRUE
        ORDER BY c.last_activity_at DESC`

	var rows []conversationRow
	if err := r.db.SelectContext(ctx, &rows, query, userMatricule); err != nil {
		return nil, err
	}

	conversations := make([]models.Conversation, 0, len(rows))
	for _, row := range rows {
		conversations = append(conversations, row.toModel())
	}
	return conversations, nil
}

// Get fetches one conversation without per-user summary fields.
func (r *ConversationRepo) Get(ctx context.Context, matricule string) (models.Conversation, error) {
	query := `SELECT c.matricule, c.creator_matricule, c.status, c.last_activity_at,
            (SELECT COUNT(*) FROM conversation_participants cp WHERE cp.conversation_matricule = c.matricule) AS participant_count,
            0 AS unread_count, NULL AS preview_content, NULL AS preview_type
        FROM conversations c WHERE c.matricule = $1`

	var row conversationRow
	err := r.db.GetContext(ctx, &row, query, matricule)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	if err != nil {
		return models.Conversation{}, err
	}
	return row.toModel(), nil
}

// IsParticipant checks membership.
func (r *ConversationRepo) IsParticipant(ctx context.Context, matricule, userMatricule string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_matricule=$1 AND user_matricule=$2)`,
		matricule, userMatricule)
	return exists, err
}

// Create inserts a conversation with the creator and the given participants.
func (r *ConversationRepo) Create(ctx context.Context, creatorMatricule string, participantMatricules []string) (models.Conversation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer tx.Rollback()

	matricule := uuid.NewString()
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (matricule, creator_matricule, status, last_activity_at) VALUES ($1, $2, 'active', $3)`,
		matricule, creatorMatricule, now); err != nil {
		return models.Conversation{}, err
	}

	members := append([]string{creatorMatricule}, participantMatricules...)
	seen := map[string]struct{}{}
	count := 0
	for _, member := range members {
		if _, ok := seen[member]; ok {
			continue
		}
		seen[member] = struct{}{}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_participants (conversation_matricule, user_matricule) VALUES ($1, $2)`,
			matricule, member); err != nil {
			return models.Conversation{}, err
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return models.Conversation{}, err
	}

	return models.Conversation{
		Matricule:        matricule,
		CreatorMatricule: creatorMatricule,
		Status:           models.ConversationActive,
		ParticipantCount: count,
		LastActivityAt:   now,
	}, nil
}

// ToggleArchive flips active and archived.
func (r *ConversationRepo) ToggleArchive(ctx context.Context, matricule string) (models.Conversation, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET status = CASE status WHEN 'active' THEN 'archived' ELSE 'active' END WHERE matricule=$1`,
		matricule)
	if err != nil {
		return models.Conversation{}, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return models.Conversation{}, err
	}
	if count == 0 {
		return models.Conversation{}, ErrConversationNotFound
	}
	return r.Get(ctx, matricule)
}

// AddParticipants appends members, ignoring ones already present.
func (r *ConversationRepo) AddParticipants(ctx context.Context, matricule string, userMatricules []string) error {
	for _, user := range userMatricules {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO conversation_participants (conversation_matricule, user_matricule)
             VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			matricule, user); err != nil {
			return err
		}
	}
	return nil
}

// RemoveParticipants drops members.
func (r *ConversationRepo) RemoveParticipants(ctx context.Context, matricule string, userMatricules []string) error {
	for _, user := range userMatricules {
		if _, err := r.db.ExecContext(ctx,
			`DELETE FROM conversation_participants WHERE conversation_matricule=$1 AND user_matricule=$2`,
			matricule, user); err != nil {
			return err
		}
	}
	return nil
}

// Roster returns the full membership of a conversation.
func (r *ConversationRepo) Roster(ctx context.Context, matricule string) ([]models.Participant, error) {
	query := `SELECT u.matricule, u.display_name, u.role, u.scope, u.avatar_url, u.online
        FROM users u
        JOIN conversation_participants cp ON cp.user_matricule = u.matricule
        WHERE cp.conversation_matricule = $1
        ORDER BY u.display_name ASC`

	var roster []models.Participant
	err := r.db.SelectContext(ctx, &roster, query, matricule)
	return roster, err
}

// TouchActivity bumps the last-activity timestamp.
func (r *ConversationRepo) TouchActivity(ctx context.Context, matricule string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET last_activity_at=$2 WHERE matricule=$1`, matricule, at)
	return err
}
