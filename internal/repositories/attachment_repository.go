package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
)

// AttachmentRepository persists attachment metadata rows.
type AttachmentRepository interface {
	Register(ctx context.Context, att models.Attachment) (models.Attachment, error)
	GetAttachment(ctx context.Context, attachmentID int) (models.Attachment, error)
	ListForMessage(ctx context.Context, messageID int) ([]models.Attachment, error)
	IncrementDownloads(ctx context.Context, attachmentID int) error
}

// AttachmentRepo is a sqlx implementation of AttachmentRepository.
type AttachmentRepo struct {
	db *sqlx.DB
}

// NewAttachmentRepo constructs an AttachmentRepo.
func NewAttachmentRepo(db *sqlx.DB) *AttachmentRepo {
	return &AttachmentRepo{db: db}
}

const attachmentColumns = `id, message_id, group_id, file_name, object_url, size_bytes, mime_type, storage_path, uploader_id, uploaded_at, expires_at, download_count`

// Register inserts the metadata row after the object has been stored.
func (r *AttachmentRepo) Register(ctx context.Context, att models.Attachment) (models.Attachment, error) {
	if att.ExpiresAt.IsZero() {
		att.ExpiresAt = time.Now()
	}
	var stored models.Attachment
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO attachments (message_id, group_id, file_name, object_url, size_bytes, mime_type, storage_path, uploader_id, expires_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING `+attachmentColumns,
		att.MessageID, att.GroupID, att.FileName, att.ObjectURL, att.SizeBytes, att.MimeType, att.StoragePath, att.UploaderID, att.ExpiresAt).
		StructScan(&stored)
	return stored, err
}

// GetAttachment fetches a single attachment.
func (r *AttachmentRepo) GetAttachment(ctx context.Context, attachmentID int) (models.Attachment, error) {
	var att models.Attachment
	err := r.db.GetContext(ctx, &att, `SELECT `+attachmentColumns+` FROM attachments WHERE id=$1`, attachmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Attachment{}, apperrors.ErrNotFound
	}
	return att, err
}

// ListForMessage returns the attachments bound to a message.
func (r *AttachmentRepo) ListForMessage(ctx context.Context, messageID int) ([]models.Attachment, error) {
	var atts []models.Attachment
	err := r.db.SelectContext(ctx, &atts,
		`SELECT `+attachmentColumns+` FROM attachments WHERE message_id=$1 ORDER BY uploaded_at ASC, id ASC`, messageID)
	return atts, err
}

// IncrementDownloads bumps the download counter.
func (r *AttachmentRepo) IncrementDownloads(ctx context.Context, attachmentID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE attachments SET download_count = download_count + 1 WHERE id=$1`, attachmentID)
	return err
}
