package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
)

// GroupRepository abstracts group and membership persistence.
type GroupRepository interface {
	CreateGroup(ctx context.Context, actorID int, name string, variant models.GroupVariant, description, locationScope string) (models.ChatGroup, error)
	GetOrCreateDirectGroup(ctx context.Context, userA, userB int) (models.ChatGroup, error)
	GetGroup(ctx context.Context, groupID int) (models.ChatGroup, error)
	ArchiveGroup(ctx context.Context, groupID, actorID int) error
	ListGroupsForUser(ctx context.Context, userID int) ([]models.ChatGroup, error)
	AddMember(ctx context.Context, groupID, userID int, role models.MemberRole) error
	RemoveMember(ctx context.Context, groupID, userID int) error
	IsMember(ctx context.Context, groupID, userID int) (bool, error)
	MemberRole(ctx context.Context, groupID, userID int) (models.MemberRole, error)
	MarkRead(ctx context.Context, groupID, userID int) error
	UnreadCount(ctx context.Context, groupID, userID int) (int, error)
}

// GroupRepo is a sqlx implementation of GroupRepository.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

// DirectGroupName derives the canonical name for a direct group. Member ids
// are sorted so both participants compute the same name.
func DirectGroupName(userA, userB int) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("direct:%d:%d", userA, userB)
}

const groupColumns = `id, name, variant, description, location_scope, archived, created_at, updated_at`

// CreateGroup creates a group and enrolls the creator as admin.
func (r *GroupRepo) CreateGroup(ctx context.Context, actorID int, name string, variant models.GroupVariant, description, locationScope string) (models.ChatGroup, error) {
	if actorID == 0 {
		return models.ChatGroup{}, apperrors.ErrUnauthenticated
	}
	if name == "" && variant != models.GroupDirect {
		return models.ChatGroup{}, fmt.Errorf("%w: group name is required", apperrors.ErrValidation)
	}

	var group models.ChatGroup
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO chat_groups (name, variant, description, location_scope) VALUES ($1, $2, $3, $4) RETURNING `+groupColumns,
		name, variant, description, locationScope).StructScan(&group)
	if err != nil {
		return models.ChatGroup{}, err
	}

	// No transaction spans group creation and enrollment: a failure here
	// leaves a memberless group, which is recoverable, not corrupt.
	if variant != models.GroupDirect {
		if err := r.AddMember(ctx, group.ID, actorID, models.RoleAdmin); err != nil {
			return models.ChatGroup{}, err
		}
	}
	return group, nil
}

// GetOrCreateDirectGroup returns the single direct group for the pair,
// creating it and enrolling both users if it does not exist yet. A concurrent
// creation from the other participant is recovered through the unique index
// on the canonical name.
func (r *GroupRepo) GetOrCreateDirectGroup(ctx context.Context, userA, userB int) (models.ChatGroup, error) {
	if userA == 0 || userB == 0 {
		return models.ChatGroup{}, apperrors.ErrUnauthenticated
	}
	if userA == userB {
		return models.ChatGroup{}, fmt.Errorf("%w: cannot start a direct group with self", apperrors.ErrValidation)
	}
	name := DirectGroupName(userA, userB)

	var group models.ChatGroup
	err := r.db.GetContext(ctx, &group,
		`SELECT `+groupColumns+` FROM chat_groups WHERE variant='direct' AND name=$1`, name)
	if err == nil {
		return group, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.ChatGroup{}, err
	}

	err = r.db.QueryRowxContext(ctx,
		`INSERT INTO chat_groups (name, variant) VALUES ($1, 'direct') RETURNING `+groupColumns,
		name).StructScan(&group)
	if err != nil {
		if !isUniqueViolation(err) {
			return models.ChatGroup{}, err
		}
		// The other participant won the race; their row is ours.
		if err := r.db.GetContext(ctx, &group,
			`SELECT `+groupColumns+` FROM chat_groups WHERE variant='direct' AND name=$1`, name); err != nil {
			return models.ChatGroup{}, err
		}
	}

	if err := r.AddMember(ctx, group.ID, userA, models.RoleMember); err != nil {
		return models.ChatGroup{}, err
	}
	if err := r.AddMember(ctx, group.ID, userB, models.RoleMember); err != nil {
		return models.ChatGroup{}, err
	}
	return group, nil
}

// GetGroup fetches a single group.
func (r *GroupRepo) GetGroup(ctx context.Context, groupID int) (models.ChatGroup, error) {
	var group models.ChatGroup
	err := r.db.GetContext(ctx, &group, `SELECT `+groupColumns+` FROM chat_groups WHERE id=$1`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatGroup{}, apperrors.ErrNotFound
	}
	return group, err
}

// ArchiveGroup marks a group archived. Groups are never hard-deleted.
func (r *GroupRepo) ArchiveGroup(ctx context.Context, groupID, actorID int) error {
	role, err := r.MemberRole(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	if role != models.RoleAdmin {
		return fmt.Errorf("%w: only admins may archive a group", apperrors.ErrForbidden)
	}
	_, err = r.db.ExecContext(ctx, `UPDATE chat_groups SET archived = TRUE, updated_at = NOW() WHERE id=$1`, groupID)
	return err
}

// ListGroupsForUser returns the caller's groups ordered by most recent
// activity, falling back to group creation time for quiet groups.
func (r *GroupRepo) ListGroupsForUser(ctx context.Context, userID int) ([]models.ChatGroup, error) {
	query := `SELECT g.id, g.name, g.variant, g.description, g.location_scope, g.archived, g.created_at, g.updated_at
        FROM chat_groups g
        INNER JOIN group_memberships gm ON gm.group_id = g.id
        LEFT JOIN LATERAL (
            SELECT MAX(created_at) AS last_message_at FROM messages m WHERE m.group_id = g.id
        ) act ON TRUE
        WHERE gm.user_id=$1
        ORDER BY COALESCE(act.last_message_at, g.created_at) DESC`
	var groups []models.ChatGroup
	err := r.db.SelectContext(ctx, &groups, query, userID)
	return groups, err
}

// AddMember enrolls a user. Adding an existing member is a no-op.
func (r *GroupRepo) AddMember(ctx context.Context, groupID, userID int, role models.MemberRole) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO group_memberships (group_id, user_id, role) VALUES ($1, $2, $3)
         ON CONFLICT (group_id, user_id) DO NOTHING`, groupID, userID, role)
	return err
}

// RemoveMember removes a user. Removing a non-member is a no-op.
func (r *GroupRepo) RemoveMember(ctx context.Context, groupID, userID int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM group_memberships WHERE group_id=$1 AND user_id=$2`, groupID, userID)
	return err
}

// IsMember checks membership. Membership existence alone gates visibility.
func (r *GroupRepo) IsMember(ctx context.Context, groupID, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM group_memberships WHERE group_id=$1 AND user_id=$2)`, groupID, userID)
	return exists, err
}

// MemberRole returns the member's role, or ErrForbidden for non-members.
func (r *GroupRepo) MemberRole(ctx context.Context, groupID, userID int) (models.MemberRole, error) {
	var role models.MemberRole
	err := r.db.GetContext(ctx, &role, `SELECT role FROM group_memberships WHERE group_id=$1 AND user_id=$2`, groupID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.ErrForbidden
	}
	return role, err
}

// MarkRead advances the member's read horizon. The horizon only moves
// forward, so repeated or out-of-order calls cannot shrink it.
func (r *GroupRepo) MarkRead(ctx context.Context, groupID, userID int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE group_memberships SET last_read_at = GREATEST(COALESCE(last_read_at, 'epoch'::timestamptz), NOW())
         WHERE group_id=$1 AND user_id=$2`, groupID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return apperrors.ErrForbidden
	}
	return nil
}

// UnreadCount counts messages created after the member's read horizon,
// excluding the member's own messages and deleted ones.
func (r *GroupRepo) UnreadCount(ctx context.Context, groupID, userID int) (int, error) {
	member, err := r.IsMember(ctx, groupID, userID)
	if err != nil {
		return 0, err
	}
	if !member {
		return 0, apperrors.ErrForbidden
	}
	var count int
	err = r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM messages m
         INNER JOIN group_memberships gm ON gm.group_id = m.group_id AND gm.user_id = $2
         WHERE m.group_id=$1
           AND m.sender_id <> $2
           AND m.status <> 'deleted'
           AND m.created_at > COALESCE(gm.last_read_at, 'epoch'::timestamptz)`,
		groupID, userID)
	return count, err
}
