package models

import "time"

// MessageKind distinguishes message payload variants.
type MessageKind string

const (
	MessageText   MessageKind = "text"
	MessageFile   MessageKind = "file"
	MessageSystem MessageKind = "system"
)

// MessageStatus is the lifecycle tag of an otherwise append-only message row.
// A deleted message keeps its row for the audit path; it is only excluded
// from default reads.
type MessageStatus string

const (
	StatusActive  MessageStatus = "active"
	StatusEdited  MessageStatus = "edited"
	StatusDeleted MessageStatus = "deleted"
)

// Message represents a message in a group. The ordering key is
// (created_at, id); rows are never physically removed.
type Message struct {
	ID        int           `db:"id" json:"id"`
	GroupID   int           `db:"group_id" json:"group_id"`
	SenderID  int           `db:"sender_id" json:"sender_id"`
	Content   string        `db:"content" json:"content"`
	Kind      MessageKind   `db:"kind" json:"kind"`
	Status    MessageStatus `db:"status" json:"status"`
	EditedAt  *time.Time    `db:"edited_at" json:"edited_at,omitempty"`
	DeletedBy *int          `db:"deleted_by" json:"deleted_by,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// Deleted reports whether the message is hidden from default reads.
func (m Message) Deleted() bool {
	return m.Status == StatusDeleted
}
