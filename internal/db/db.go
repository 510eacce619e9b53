package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS chat_groups (
            id SERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            variant TEXT NOT NULL CHECK (variant IN ('direct', 'group', 'channel')),
            description TEXT NOT NULL DEFAULT '',
            location_scope TEXT NOT NULL DEFAULT '',
            archived BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		// The partial unique index is what makes concurrent direct-group
		// creation collapse into a single row.
		`CREATE UNIQUE INDEX IF NOT EXISTS chat_groups_direct_name
            ON chat_groups (name) WHERE variant = 'direct';`,
		`CREATE TABLE IF NOT EXISTS group_memberships (
            group_id INT NOT NULL REFERENCES chat_groups(id) ON DELETE CASCADE,
            user_id INT NOT NULL,
            role TEXT NOT NULL DEFAULT 'member' CHECK (role IN ('admin', 'moderator', 'member')),
            joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            last_read_at TIMESTAMPTZ,
            PRIMARY KEY (group_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            group_id INT NOT NULL REFERENCES chat_groups(id) ON DELETE CASCADE,
            sender_id INT NOT NULL,
            content TEXT NOT NULL,
            kind TEXT NOT NULL DEFAULT 'text' CHECK (kind IN ('text', 'file', 'system')),
            status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'edited', 'deleted')),
            edited_at TIMESTAMPTZ,
            deleted_by INT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS messages_group_created
            ON messages (group_id, created_at DESC, id DESC);`,
		`CREATE TABLE IF NOT EXISTS attachments (
            id SERIAL PRIMARY KEY,
            message_id INT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            group_id INT NOT NULL REFERENCES chat_groups(id) ON DELETE CASCADE,
            file_name TEXT NOT NULL,
            object_url TEXT NOT NULL DEFAULT '',
            size_bytes BIGINT NOT NULL,
            mime_type TEXT NOT NULL,
            storage_path TEXT NOT NULL,
            uploader_id INT NOT NULL,
            uploaded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            expires_at TIMESTAMPTZ NOT NULL,
            download_count INT NOT NULL DEFAULT 0
        );`,
		`CREATE TABLE IF NOT EXISTS reactions (
            message_id INT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            user_id INT NOT NULL,
            emoji TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (message_id, user_id, emoji)
        );`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
