package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
)

// MaxContentBytes is the ceiling for message content, in UTF-8 bytes.
const MaxContentBytes = 4000

// MessageRepository defines operations on the append-only message log.
type MessageRepository interface {
	Send(ctx context.Context, groupID, senderID int, content string, kind models.MessageKind) (models.Message, error)
	Edit(ctx context.Context, messageID, actorID int, newContent string) (models.Message, error)
	SoftDelete(ctx context.Context, messageID, actorID int) (models.Message, error)
	Page(ctx context.Context, groupID, limit, offset int) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, group_id, sender_id, content, kind, status, edited_at, deleted_by, created_at, updated_at`

// ValidateContent enforces the content rules for a message kind.
func ValidateContent(content string, kind models.MessageKind) error {
	if kind == models.MessageText && strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: message content is empty", apperrors.ErrValidation)
	}
	if len(content) > MaxContentBytes {
		return fmt.Errorf("%w: message content exceeds %d bytes", apperrors.ErrValidation, MaxContentBytes)
	}
	return nil
}

// Send appends a message to the group's log.
func (r *MessageRepo) Send(ctx context.Context, groupID, senderID int, content string, kind models.MessageKind) (models.Message, error) {
	if err := ValidateContent(content, kind); err != nil {
		return models.Message{}, err
	}
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (group_id, sender_id, content, kind) VALUES ($1, $2, $3, $4) RETURNING `+messageColumns,
		groupID, senderID, content, kind).StructScan(&msg)
	return msg, err
}

// Edit replaces the visible content. Only the original sender may edit, and
// the edited mark is permanent once set. Deleted messages cannot be edited.
func (r *MessageRepo) Edit(ctx context.Context, messageID, actorID int, newContent string) (models.Message, error) {
	if err := ValidateContent(newContent, models.MessageText); err != nil {
		return models.Message{}, err
	}

	current, err := r.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if current.SenderID != actorID {
		return models.Message{}, fmt.Errorf("%w: only the sender may edit", apperrors.ErrForbidden)
	}
	if current.Deleted() {
		return models.Message{}, fmt.Errorf("%w: message is deleted", apperrors.ErrNotFound)
	}

	var msg models.Message
	err = r.db.QueryRowxContext(ctx,
		`UPDATE messages SET content=$1, status='edited', edited_at=COALESCE(edited_at, NOW()), updated_at=NOW()
         WHERE id=$2 AND sender_id=$3 AND status <> 'deleted' RETURNING `+messageColumns,
		newContent, messageID, actorID).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, apperrors.ErrNotFound
	}
	return msg, err
}

// SoftDelete hides the message from default reads while keeping the row.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID, actorID int) (models.Message, error) {
	current, err := r.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if current.SenderID != actorID {
		return models.Message{}, fmt.Errorf("%w: only the sender may delete", apperrors.ErrForbidden)
	}

	var msg models.Message
	err = r.db.QueryRowxContext(ctx,
		`UPDATE messages SET status='deleted', deleted_by=$1, updated_at=NOW()
         WHERE id=$2 AND sender_id=$1 RETURNING `+messageColumns,
		actorID, messageID).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, apperrors.ErrNotFound
	}
	return msg, err
}

// Page returns a chronologically ascending slice of the group's messages,
// excluding deleted ones. The store is queried newest-first for the
// limit/offset window, then the slice is reversed, so callers can append
// newly arriving messages without re-sorting.
func (r *MessageRepo) Page(ctx context.Context, groupID, limit, offset int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages
         WHERE group_id=$1 AND status <> 'deleted'
         ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		groupID, limit, offset)
	if err != nil {
		return nil, err
	}
	reverseMessages(msgs)
	return msgs, nil
}

// GetMessage retrieves a single message by id, including deleted rows. This
// is the audit path; default reads go through Page.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, apperrors.ErrNotFound
	}
	return msg, err
}

func reverseMessages(msgs []models.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
