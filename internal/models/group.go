package models

import "time"

// GroupVariant distinguishes conversation scopes.
type GroupVariant string

const (
	GroupDirect  GroupVariant = "direct"
	GroupMulti   GroupVariant = "group"
	GroupChannel GroupVariant = "channel"
)

// MemberRole is the authorization level of a membership.
type MemberRole string

const (
	RoleAdmin     MemberRole = "admin"
	RoleModerator MemberRole = "moderator"
	RoleMember    MemberRole = "member"
)

// ChatGroup represents a named conversation scope.
// Direct groups carry a deterministic name derived from the two member ids,
// which is what makes direct-group creation idempotent.
type ChatGroup struct {
	ID            int          `db:"id" json:"id"`
	Name          string       `db:"name" json:"name"`
	Variant       GroupVariant `db:"variant" json:"variant"`
	Description   string       `db:"description" json:"description,omitempty"`
	LocationScope string       `db:"location_scope" json:"location_scope,omitempty"`
	Archived      bool         `db:"archived" json:"archived"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

// GroupMembership grants a user visibility and write access to a group.
type GroupMembership struct {
	GroupID    int        `db:"group_id" json:"group_id"`
	UserID     int        `db:"user_id" json:"user_id"`
	Role       MemberRole `db:"role" json:"role"`
	JoinedAt   time.Time  `db:"joined_at" json:"joined_at"`
	LastReadAt *time.Time `db:"last_read_at" json:"last_read_at,omitempty"`
}
