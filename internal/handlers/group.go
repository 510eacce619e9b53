package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

// GroupHandler manages group and membership endpoints.
type GroupHandler struct {
	groupRepo   repositories.GroupRepository
	messageRepo repositories.MessageRepository
	hub         *ws.Hub
	audit       *telemetry.AuditEmitter
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(groupRepo repositories.GroupRepository, messageRepo repositories.MessageRepository, hub *ws.Hub, audit *telemetry.AuditEmitter) *GroupHandler {
	return &GroupHandler{
		groupRepo:   groupRepo,
		messageRepo: messageRepo,
		hub:         hub,
		audit:       audit,
	}
}

// CreateGroup handles POST /groups.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	userID := c.GetInt("userID")

	var req struct {
		Name          string `json:"name" binding:"required"`
		Variant       string `json:"variant"`
		Description   string `json:"description"`
		LocationScope string `json:"location_scope"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "group_create", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	variant := models.GroupVariant(req.Variant)
	if variant == "" {
		variant = models.GroupMulti
	}
	if variant != models.GroupMulti && variant != models.GroupChannel {
		c.JSON(http.StatusBadRequest, gin.H{"error": "variant must be 'group' or 'channel'"})
		return
	}

	group, err := h.groupRepo.CreateGroup(c.Request.Context(), userID, req.Name, variant, req.Description, req.LocationScope)
	if err != nil {
		h.emitAudit(c, "ERROR", "group_create", "could not create group")
		respondError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "group_create", "group created")
	c.JSON(http.StatusCreated, group)
}

// StartDirectGroup handles POST /groups/direct. Calling it twice, from
// either side of the pair, lands on the same group.
func (h *GroupHandler) StartDirectGroup(c *gin.Context) {
	userID := c.GetInt("userID")

	var req struct {
		PeerID int `json:"peer_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.groupRepo.GetOrCreateDirectGroup(c.Request.Context(), userID, req.PeerID)
	if err != nil {
		h.emitAudit(c, "ERROR", "direct_group", "could not start direct group")
		respondError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "direct_group", "direct group ready")
	c.JSON(http.StatusOK, group)
}

// ListGroups returns the caller's groups ordered by recent activity.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	userID := c.GetInt("userID")
	groups, err := h.groupRepo.ListGroupsForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load groups"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// GetGroup returns a single group the caller belongs to.
func (h *GroupHandler) GetGroup(c *gin.Context) {
	groupID, ok := pathInt(c, "group_id")
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	if !h.requireMember(c, groupID, userID) {
		return
	}

	group, err := h.groupRepo.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// ArchiveGroup marks a group archived (admin only).
func (h *GroupHandler) ArchiveGroup(c *gin.Context) {
	groupID, ok := pathInt(c, "group_id")
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	if err := h.groupRepo.ArchiveGroup(c.Request.Context(), groupID, userID); err != nil {
		h.emitAudit(c, "ERROR", "group_archive", "archive refused")
		respondError(c, err)
		return
	}
	h.emitAudit(c, "INFO", "group_archive", "group archived")
	c.Status(http.StatusNoContent)
}

// AddMember enrolls a user into the group. Repeating the call is a no-op.
func (h *GroupHandler) AddMember(c *gin.Context) {
	groupID, ok := pathInt(c, "group_id")
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	if !h.requireMember(c, groupID, userID) {
		return
	}

	var req struct {
		UserID int    `json:"user_id" binding:"required"`
		Role   string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role := models.MemberRole(req.Role)
	if role == "" {
		role = models.RoleMember
	}

	if err := h.groupRepo.AddMember(c.Request.Context(), groupID, req.UserID, role); err != nil {
		h.emitAudit(c, "ERROR", "member_add", "could not add member")
		respondError(c, err)
		return
	}

	h.hub.Publish(models.GroupEvent{Type: models.EventMemberAdded, GroupID: groupID, UserID: req.UserID})
	h.emitAudit(c, "INFO", "member_add", "member added")
	c.Status(http.StatusNoContent)
}

// RemoveMember removes a user from the group. Removing a non-member is a
// no-op.
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	groupID, ok := pathInt(c, "group_id")
	if !ok {
		return
	}
	memberID, ok := pathInt(c, "user_id")
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	if !h.requireMember(c, groupID, userID) {
		return
	}

	if err := h.groupRepo.RemoveMember(c.Request.Context(), groupID, memberID); err != nil {
		h.emitAudit(c, "ERROR", "member_remove", "could not remove member")
		respondError(c, err)
		return
	}

	h.hub.Publish(models.GroupEvent{Type: models.EventMemberRemoved, GroupID: groupID, UserID: memberID})
	h.emitAudit(c, "INFO", "member_remove", "member removed")
	c.Status(http.StatusNoContent)
}

// MarkRead advances the caller's read horizon in the group.
func (h *GroupHandler) MarkRead(c *gin.Context) {
	groupID, ok := pathInt(c, "group_id")
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	if err := h.groupRepo.MarkRead(c.Request.Context(), groupID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UnreadCount returns the number of messages past the caller's read horizon.
func (h *GroupHandler) UnreadCount(c *gin.Context) {
	groupID, ok := pathInt(c, "group_id")
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	count, err := h.groupRepo.UnreadCount(c.Request.Context(), groupID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func (h *GroupHandler) requireMember(c *gin.Context, groupID, userID int) bool {
	member, err := h.groupRepo.IsMember(c.Request.Context(), groupID, userID)
	if err != nil {
		h.emitAudit(c, "ERROR", "membership_check", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
		return false
	}
	if !member {
		h.emitAudit(c, "ERROR", "membership_check", "not allowed")
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return false
	}
	return true
}

func (h *GroupHandler) emitAudit(c *gin.Context, level, action, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, action, text, requestIDFromContext(c), userIDFromContext(c))
}
