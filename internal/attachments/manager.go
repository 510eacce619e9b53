// Package attachments binds validated file uploads to messages and issues
// expiring download URLs.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
	"messaging-service/internal/policy"
	"messaging-service/internal/repositories"
	"messaging-service/internal/storage"
)

// Manager validates, stores and registers attachments.
type Manager struct {
	validator policy.Validator
	store     storage.ObjectStore
	repo      repositories.AttachmentRepository
	messages  repositories.MessageRepository
	groups    repositories.GroupRepository
	signer    *storage.URLSigner
	log       *zap.Logger
	now       func() time.Time
}

// NewManager constructs a Manager.
func NewManager(
	validator policy.Validator,
	store storage.ObjectStore,
	repo repositories.AttachmentRepository,
	messages repositories.MessageRepository,
	groups repositories.GroupRepository,
	signer *storage.URLSigner,
	log *zap.Logger,
) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		validator: validator,
		store:     store,
		repo:      repo,
		messages:  messages,
		groups:    groups,
		signer:    signer,
		log:       log,
		now:       time.Now,
	}
}

// Validate runs the policy pass for a prospective upload.
func (m *Manager) Validate(ctx context.Context, descriptor models.FileDescriptor, groupID int) (policy.Result, error) {
	if descriptor.FileName == "" || descriptor.SizeBytes <= 0 {
		return policy.Result{}, fmt.Errorf("%w: file name and size are required", apperrors.ErrValidation)
	}
	return m.validator.Validate(ctx, descriptor, groupID)
}

// Upload validates the descriptor, stores the object and registers the
// metadata row with the validation-issued expiry. Validation failure aborts
// before any write. If metadata registration fails after the object write,
// the orphaned object is kept (removing it could race a concurrent reader)
// and the caller receives ErrPartialWrite.
func (m *Manager) Upload(ctx context.Context, descriptor models.FileDescriptor, groupID, messageID, uploaderID int, contents io.Reader) (models.Attachment, error) {
	msg, err := m.messages.GetMessage(ctx, messageID)
	if err != nil {
		return models.Attachment{}, err
	}
	if msg.GroupID != groupID {
		return models.Attachment{}, fmt.Errorf("%w: message does not belong to group", apperrors.ErrValidation)
	}

	result, err := m.Validate(ctx, descriptor, groupID)
	if err != nil {
		return models.Attachment{}, err
	}

	storagePath := objectPath(groupID, messageID, descriptor.FileName)
	if err := m.store.Put(ctx, storagePath, contents); err != nil {
		return models.Attachment{}, fmt.Errorf("%w: %v", apperrors.ErrBackendUnavailable, err)
	}

	att, err := m.repo.Register(ctx, models.Attachment{
		MessageID:   messageID,
		GroupID:     groupID,
		FileName:    descriptor.FileName,
		SizeBytes:   descriptor.SizeBytes,
		MimeType:    descriptor.MimeType,
		StoragePath: storagePath,
		UploaderID:  uploaderID,
		ExpiresAt:   result.ExpiresAt,
	})
	if err != nil {
		// Deliberate consistency trade-off: the object stays, the message
		// simply has no attachment row. Retrying here could duplicate the
		// object under a new path.
		m.log.Error("attachment metadata registration failed, object orphaned",
			zap.Int("group_id", groupID),
			zap.Int("message_id", messageID),
			zap.String("storage_path", storagePath),
			zap.Error(err))
		return models.Attachment{}, fmt.Errorf("%w: %v", apperrors.ErrPartialWrite, err)
	}
	return att, nil
}

// DownloadURL mints a fresh short-lived signed URL for the attachment. The
// actor must be a member of the owning group and the attachment must not
// have expired. The stored permanent path is never returned.
func (m *Manager) DownloadURL(ctx context.Context, attachmentID, actorID int, ttl time.Duration) (string, error) {
	att, err := m.repo.GetAttachment(ctx, attachmentID)
	if err != nil {
		return "", err
	}

	member, err := m.groups.IsMember(ctx, att.GroupID, actorID)
	if err != nil {
		return "", err
	}
	if !member {
		return "", fmt.Errorf("%w: not a member of the attachment's group", apperrors.ErrForbidden)
	}

	if att.Expired(m.now()) {
		return "", apperrors.ErrExpired
	}
	return m.signer.SignedURL(att.ID, ttl)
}

// Serve resolves a signed download token into the object stream, rejecting
// expired attachments at serve time as well.
func (m *Manager) Serve(ctx context.Context, token string) (models.Attachment, io.ReadCloser, error) {
	attachmentID, err := m.signer.Verify(token)
	if err != nil {
		return models.Attachment{}, nil, fmt.Errorf("%w: %v", apperrors.ErrForbidden, err)
	}

	att, err := m.repo.GetAttachment(ctx, attachmentID)
	if err != nil {
		return models.Attachment{}, nil, err
	}
	if att.Expired(m.now()) {
		return models.Attachment{}, nil, apperrors.ErrExpired
	}

	rc, err := m.store.Open(ctx, att.StoragePath)
	if err != nil {
		return models.Attachment{}, nil, fmt.Errorf("%w: %v", apperrors.ErrBackendUnavailable, err)
	}

	if err := m.repo.IncrementDownloads(ctx, att.ID); err != nil {
		m.log.Warn("download counter not incremented", zap.Int("attachment_id", att.ID), zap.Error(err))
	}
	return att, rc, nil
}

// IsPartialWrite reports whether the upload stored the object but failed to
// register metadata.
func IsPartialWrite(err error) bool {
	return errors.Is(err, apperrors.ErrPartialWrite)
}

func objectPath(groupID, messageID int, fileName string) string {
	return path.Join(
		fmt.Sprintf("groups/%d", groupID),
		fmt.Sprintf("messages/%d", messageID),
		uuid.NewString()+"_"+path.Base(fileName),
	)
}
