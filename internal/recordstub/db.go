// Package recordstub is a development implementation of the record API the
// messaging core consumes. It exists so the sync agent can be exercised
// end to end without the real e-learning backend.
package recordstub

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Connect opens the stub database and applies its schema.
func Connect(dsn string, log *zap.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	log.Info("record stub database ready")
	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
            matricule TEXT PRIMARY KEY,
            display_name TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT 'student',
            scope TEXT NOT NULL DEFAULT '',
            avatar_url TEXT NOT NULL DEFAULT '',
            online BOOLEAN NOT NULL DEFAULT FALSE
        );`,
		`CREATE TABLE IF NOT EXISTS conversations (
            matricule TEXT PRIMARY KEY,
            creator_matricule TEXT NOT NULL REFERENCES users(matricule),
            status TEXT NOT NULL DEFAULT 'active',
            last_activity_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS conversation_participants (
            conversation_matricule TEXT NOT NULL REFERENCES conversations(matricule) ON DELETE CASCADE,
            user_matricule TEXT NOT NULL REFERENCES users(matricule),
            PRIMARY KEY(conversation_matricule, user_matricule)
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            matricule TEXT PRIMARY KEY,
            conversation_matricule TEXT NOT NULL REFERENCES conversations(matricule) ON DELETE CASCADE,
            sender_matricule TEXT NOT NULL REFERENCES users(matricule),
            content TEXT,
            type TEXT NOT NULL DEFAULT 'text',
            parent_matricule TEXT REFERENCES messages(matricule),
            pinned BOOLEAN NOT NULL DEFAULT FALSE,
            edited BOOLEAN NOT NULL DEFAULT FALSE,
            read_status TEXT NOT NULL DEFAULT 'sent',
            sent_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS attachments (
            id SERIAL PRIMARY KEY,
            message_matricule TEXT NOT NULL REFERENCES messages(matricule) ON DELETE CASCADE,
            name TEXT NOT NULL,
            url TEXT NOT NULL,
            size BIGINT NOT NULL DEFAULT 0,
            mime_type TEXT NOT NULL DEFAULT 'application/octet-stream'
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation_sent
            ON messages(conversation_matricule, sent_at);`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}
