package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/presence"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

// MessageHandler manages the message log endpoints.
type MessageHandler struct {
	groupRepo   repositories.GroupRepository
	messageRepo repositories.MessageRepository
	hub         *ws.Hub
	broadcaster *presence.Broadcaster
	audit       *telemetry.AuditEmitter
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(groupRepo repositories.GroupRepository, messageRepo repositories.MessageRepository, hub *ws.Hub, broadcaster *presence.Broadcaster, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{
		groupRepo:   groupRepo,
		messageRepo: messageRepo,
		hub:         hub,
		broadcaster: broadcaster,
		audit:       audit,
	}
}

// ListMessages returns a chronologically ascending page of the group's
// messages, deleted rows excluded.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	groupID, ok := pathInt(c, "group_id")
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	if !h.requireMember(c, groupID, userID) {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	msgs, err := h.messageRepo.Page(c.Request.Context(), groupID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage appends a message and broadcasts it to the group's stream.
func (h *MessageHandler) PostMessage(c *gin.Context) {
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
	if group.Archived {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group is archived"})
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
		Kind    string `json:"kind"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "message_send", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kind := models.MessageKind(req.Kind)
	if kind == "" {
		kind = models.MessageText
	}
	// System messages are minted by the service, never by clients.
	if kind != models.MessageText && kind != models.MessageFile {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be 'text' or 'file'"})
		return
	}

	msg, err := h.messageRepo.Send(c.Request.Context(), groupID, userID, req.Content, kind)
	if err != nil {
		h.emitAudit(c, "ERROR", "message_send", "failed to store message")
		respondError(c, err)
		return
	}

	h.hub.Publish(models.GroupEvent{Type: models.EventMessageCreated, GroupID: groupID, Message: &msg})
	observability.IncMessageSent(string(kind))

	// Sending clears the sender's typing mark; consumers also time it out
	// on their own.
	if h.broadcaster != nil {
		h.broadcaster.Announce(c.Request.Context(), groupID, userID, false)
	}

	h.emitAudit(c, "INFO", "message_send", "message sent")
	c.JSON(http.StatusCreated, msg)
}

// EditMessage replaces the visible content of the caller's own message.
func (h *MessageHandler) EditMessage(c *gin.Context) {
	groupID, messageID, ok := pathGroupMessage(c)
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	if !h.requireMember(c, groupID, userID) {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.requireInGroup(c, groupID, messageID) {
		return
	}

	msg, err := h.messageRepo.Edit(c.Request.Context(), messageID, userID, req.Content)
	if err != nil {
		h.emitAudit(c, "ERROR", "message_edit", "edit refused")
		respondError(c, err)
		return
	}

	h.hub.Publish(models.GroupEvent{Type: models.EventMessageEdited, GroupID: groupID, Message: &msg})
	h.emitAudit(c, "INFO", "message_edit", "message edited")
	c.JSON(http.StatusOK, msg)
}

// DeleteMessage soft-deletes the caller's own message. The row stays for the
// audit path; the stream tells every subscriber to drop it from view.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	groupID, messageID, ok := pathGroupMessage(c)
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	if !h.requireMember(c, groupID, userID) {
		return
	}
	if !h.requireInGroup(c, groupID, messageID) {
		return
	}

	if _, err := h.messageRepo.SoftDelete(c.Request.Context(), messageID, userID); err != nil {
		h.emitAudit(c, "ERROR", "message_delete", "delete refused")
		respondError(c, err)
		return
	}

	h.hub.Publish(models.GroupEvent{Type: models.EventMessageDeleted, GroupID: groupID, MessageID: messageID})
	h.emitAudit(c, "INFO", "message_delete", "message deleted")
	c.Status(http.StatusNoContent)
}

func (h *MessageHandler) requireMember(c *gin.Context, groupID, userID int) bool {
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

func (h *MessageHandler) requireInGroup(c *gin.Context, groupID, messageID int) bool {
	msg, err := h.messageRepo.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		respondError(c, err)
		return false
	}
	if msg.GroupID != groupID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message does not belong to group"})
		return false
	}
	return true
}

func (h *MessageHandler) emitAudit(c *gin.Context, level, action, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, action, text, requestIDFromContext(c), userIDFromContext(c))
}

func pathGroupMessage(c *gin.Context) (int, int, bool) {
	groupID, err := strconv.Atoi(c.Param("group_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return 0, 0, false
	}
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return 0, 0, false
	}
	return groupID, messageID, true
}
