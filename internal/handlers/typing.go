package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/observability"
	"messaging-service/internal/presence"
	"messaging-service/internal/repositories"
)

// TypingHandler publishes typing announcements.
type TypingHandler struct {
	groupRepo   repositories.GroupRepository
	broadcaster *presence.Broadcaster
}

// NewTypingHandler constructs a TypingHandler.
func NewTypingHandler(groupRepo repositories.GroupRepository, broadcaster *presence.Broadcaster) *TypingHandler {
	return &TypingHandler{groupRepo: groupRepo, broadcaster: broadcaster}
}

// Announce handles POST /groups/:group_id/typing. The broadcast itself is
// best-effort, so the response is 204 whenever the caller is allowed to
// announce at all; delivery failures are never reported to the user.
func (h *TypingHandler) Announce(c *gin.Context) {
	groupID, ok := pathInt(c, "group_id")
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	member, err := h.groupRepo.IsMember(c.Request.Context(), groupID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return
	}

	var req struct {
		IsTyping *bool `json:"is_typing" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.broadcaster.Announce(c.Request.Context(), groupID, userID, *req.IsTyping)
	observability.IncTypingEvent()
	c.Status(http.StatusNoContent)
}
