package repositories

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
)

// MaxEmojiBytes bounds a reaction emoji. Any grapheme cluster within the
// bound is accepted; there is no whitelist.
const MaxEmojiBytes = 32

// ReactionRepository is the idempotent per-(message,user,emoji) reaction set.
type ReactionRepository interface {
	Add(ctx context.Context, messageID, userID int, emoji string) error
	Remove(ctx context.Context, messageID, userID int, emoji string) error
	Aggregate(ctx context.Context, messageID int) (map[string][]int, error)
}

// ReactionRepo is a sqlx implementation of ReactionRepository.
type ReactionRepo struct {
	db *sqlx.DB
}

// NewReactionRepo constructs a ReactionRepo.
func NewReactionRepo(db *sqlx.DB) *ReactionRepo {
	return &ReactionRepo{db: db}
}

func validateEmoji(emoji string) error {
	if emoji == "" {
		return fmt.Errorf("%w: emoji is empty", apperrors.ErrValidation)
	}
	if len(emoji) > MaxEmojiBytes {
		return fmt.Errorf("%w: emoji exceeds %d bytes", apperrors.ErrValidation, MaxEmojiBytes)
	}
	return nil
}

// Add inserts the triple. A duplicate is a no-op, never an error: the primary
// key carries the idempotence, not a lock.
func (r *ReactionRepo) Add(ctx context.Context, messageID, userID int, emoji string) error {
	if err := validateEmoji(emoji); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reactions (message_id, user_id, emoji) VALUES ($1, $2, $3)
         ON CONFLICT (message_id, user_id, emoji) DO NOTHING`,
		messageID, userID, emoji)
	return err
}

// Remove deletes the triple. Absence is not an error.
func (r *ReactionRepo) Remove(ctx context.Context, messageID, userID int, emoji string) error {
	if err := validateEmoji(emoji); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM reactions WHERE message_id=$1 AND user_id=$2 AND emoji=$3`,
		messageID, userID, emoji)
	return err
}

// Aggregate groups the message's reactions by emoji for rendering counts.
func (r *ReactionRepo) Aggregate(ctx context.Context, messageID int) (map[string][]int, error) {
	var rows []models.Reaction
	err := r.db.SelectContext(ctx, &rows,
		`SELECT message_id, user_id, emoji, created_at FROM reactions WHERE message_id=$1 ORDER BY created_at ASC`,
		messageID)
	if err != nil {
		return nil, err
	}
	return AggregateReactions(rows), nil
}

// AggregateReactions shapes reaction rows into emoji -> user ids, each list
// sorted for deterministic rendering.
func AggregateReactions(rows []models.Reaction) map[string][]int {
	agg := make(map[string][]int, len(rows))
	for _, row := range rows {
		agg[row.Emoji] = append(agg[row.Emoji], row.UserID)
	}
	for emoji := range agg {
		sort.Ints(agg[emoji])
	}
	return agg
}
