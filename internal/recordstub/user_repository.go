package recordstub

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"messaging-core/internal/models"
)

// UserRepository abstracts the user directory for the stub.
type UserRepository interface {
	Get(ctx context.Context, matricule string) (models.Participant, error)
	Search(ctx context.Context, query, roleFilter, scopeFilter string) ([]models.Participant, error)
	Ensure(ctx context.Context, user models.Participant) error
}

// UserRepo is the sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Get fetches one user.
func (r *UserRepo) Get(ctx context.Context, matricule string) (models.Participant, error) {
	var user models.Participant
	err := r.db.GetContext(ctx, &user,
		`SELECT matricule, display_name, role, scope, avatar_url, online FROM users WHERE matricule=$1`, matricule)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Participant{}, ErrUserNotFound
	}
	return user, err
}

// Search matches users by name or matricule, optionally filtered by role
// and by scope.
func (r *UserRepo) Search(ctx context.Context, query, roleFilter, scopeFilter string) ([]models.Participant, error) {
	sqlQuery := `SELECT matricule, display_name, role, scope, avatar_url, online FROM users
        WHERE (display_name ILIKE '%' || $1 || '%' OR matricule ILIKE '%' || $1 || '%')`
	args := []any{query}
	if roleFilter != "" {
		args = append(args, roleFilter)
		sqlQuery += fmt.Sprintf(` AND role=$%d`, len(args))
	}
	if scopeFilter != "" {
		args = append(args, scopeFilter)
		sqlQuery += fmt.Sprintf(` AND scope=$%d`, len(args))
	}
	sqlQuery += ` ORDER BY display_name ASC LIMIT 50`

	var users []models.Participant
	err := r.db.SelectContext(ctx, &users, sqlQuery, args...)
	return users, err
}

// Ensure upserts a user record, used when seeding callers on first sight.
func (r *UserRepo) Ensure(ctx context.Context, user models.Participant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (matricule, display_name, role, scope, avatar_url, online)
         VALUES ($1, $2, $3, $4, $5, $6)
         ON CONFLICT (matricule) DO UPDATE SET online = EXCLUDED.online`,
		user.Matricule, user.DisplayName, user.Role, user.Scope, user.AvatarURL, user.Online)
	return err
}
