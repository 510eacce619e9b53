package models

import "time"

// Attachment is a file bound to an existing message. The expiry timestamp is
// issued during policy validation and never extended afterwards.
type Attachment struct {
	ID            int       `db:"id" json:"id"`
	MessageID     int       `db:"message_id" json:"message_id"`
	GroupID       int       `db:"group_id" json:"group_id"`
	FileName      string    `db:"file_name" json:"file_name"`
	ObjectURL     string    `db:"object_url" json:"object_url"`
	SizeBytes     int64     `db:"size_bytes" json:"size_bytes"`
	MimeType      string    `db:"mime_type" json:"mime_type"`
	StoragePath   string    `db:"storage_path" json:"-"`
	UploaderID    int       `db:"uploader_id" json:"uploader_id"`
	UploadedAt    time.Time `db:"uploaded_at" json:"uploaded_at"`
	ExpiresAt     time.Time `db:"expires_at" json:"expires_at"`
	DownloadCount int       `db:"download_count" json:"download_count"`
}

// Expired reports whether the attachment may no longer be served.
func (a Attachment) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

// FileDescriptor describes an upload before it is validated and stored.
type FileDescriptor struct {
	FileName  string `json:"file_name"`
	SizeBytes int64  `json:"size_bytes"`
	MimeType  string `json:"mime_type"`
}
