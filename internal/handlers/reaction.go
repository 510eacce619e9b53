package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/ws"
)

// ReactionHandler manages emoji reaction endpoints.
type ReactionHandler struct {
	groupRepo    repositories.GroupRepository
	messageRepo  repositories.MessageRepository
	reactionRepo repositories.ReactionRepository
	hub          *ws.Hub
}

// NewReactionHandler constructs a ReactionHandler.
func NewReactionHandler(groupRepo repositories.GroupRepository, messageRepo repositories.MessageRepository, reactionRepo repositories.ReactionRepository, hub *ws.Hub) *ReactionHandler {
	return &ReactionHandler{
		groupRepo:    groupRepo,
		messageRepo:  messageRepo,
		reactionRepo: reactionRepo,
		hub:          hub,
	}
}

// AddReaction records the (message, caller, emoji) triple. Reacting twice
// with the same emoji is a no-op, and both calls succeed.
func (h *ReactionHandler) AddReaction(c *gin.Context) {
	messageID, emoji, msg, ok := h.resolve(c)
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	if err := h.reactionRepo.Add(c.Request.Context(), messageID, userID, emoji); err != nil {
		respondError(c, err)
		return
	}

	h.hub.Publish(models.GroupEvent{
		Type:      models.EventReactionAdded,
		GroupID:   msg.GroupID,
		MessageID: messageID,
		Reaction:  &models.Reaction{MessageID: messageID, UserID: userID, Emoji: emoji},
	})
	c.Status(http.StatusNoContent)
}

// RemoveReaction deletes the triple. Removing an absent reaction succeeds.
func (h *ReactionHandler) RemoveReaction(c *gin.Context) {
	messageID, emoji, msg, ok := h.resolve(c)
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	if err := h.reactionRepo.Remove(c.Request.Context(), messageID, userID, emoji); err != nil {
		respondError(c, err)
		return
	}

	h.hub.Publish(models.GroupEvent{
		Type:      models.EventReactionRemoved,
		GroupID:   msg.GroupID,
		MessageID: messageID,
		Reaction:  &models.Reaction{MessageID: messageID, UserID: userID, Emoji: emoji},
	})
	c.Status(http.StatusNoContent)
}

// ListReactions returns the message's reactions grouped by emoji.
func (h *ReactionHandler) ListReactions(c *gin.Context) {
	messageID, ok := pathInt(c, "message_id")
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	msg, err := h.messageRepo.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !h.requireMember(c, msg.GroupID, userID) {
		return
	}

	agg, err := h.reactionRepo.Aggregate(c.Request.Context(), messageID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load reactions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reactions": agg})
}

// resolve parses the path and body, loads the message and gates on
// membership of its owning group.
func (h *ReactionHandler) resolve(c *gin.Context) (int, string, models.Message, bool) {
	messageID, ok := pathInt(c, "message_id")
	if !ok {
		return 0, "", models.Message{}, false
	}

	var req struct {
		Emoji string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, "", models.Message{}, false
	}

	msg, err := h.messageRepo.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		respondError(c, err)
		return 0, "", models.Message{}, false
	}

	if !h.requireMember(c, msg.GroupID, c.GetInt("userID")) {
		return 0, "", models.Message{}, false
	}
	return messageID, req.Emoji, msg, true
}

func (h *ReactionHandler) requireMember(c *gin.Context, groupID, userID int) bool {
	member, err := h.groupRepo.IsMember(c.Request.Context(), groupID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
		return false
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return false
	}
	return true
}
