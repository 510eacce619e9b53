package models

import "time"

// Reaction is a (message, user, emoji) triple. The triple itself is the
// identity; at most one row exists per triple.
type Reaction struct {
	MessageID int       `db:"message_id" json:"message_id"`
	UserID    int       `db:"user_id" json:"user_id"`
	Emoji     string    `db:"emoji" json:"emoji"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
