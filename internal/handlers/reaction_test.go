package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/ws"
)

func setupReactionRouter(handler *ReactionHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/messages/:message_id/reactions", handler.AddReaction)
	r.DELETE("/messages/:message_id/reactions", handler.RemoveReaction)
	r.GET("/messages/:message_id/reactions", handler.ListReactions)
	return r
}

func TestAddReactionPublishesEvent(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	reactionRepo := new(mocks.ReactionRepositoryMock)
	hub := ws.NewHub(zap.NewNop())
	handler := NewReactionHandler(groupRepo, messageRepo, reactionRepo, hub)
	router := setupReactionRouter(handler)

	sub := hub.Subscribe(5)
	defer hub.Unsubscribe(sub)

	messageRepo.On("GetMessage", mock.Anything, 12).Return(models.Message{ID: 12, GroupID: 5}, nil).Once()
	groupRepo.On("IsMember", mock.Anything, 5, 1).Return(true, nil).Once()
	reactionRepo.On("Add", mock.Anything, 12, 1, "👍").Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/12/reactions", bytes.NewBufferString(`{"emoji":"👍"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)

	select {
	case ev := <-sub.C:
		assert.Equal(t, models.EventReactionAdded, ev.Type)
		require.NotNil(t, ev.Reaction)
		assert.Equal(t, "👍", ev.Reaction.Emoji)
	case <-time.After(time.Second):
		t.Fatal("no reaction event published")
	}
	reactionRepo.AssertExpectations(t)
}

func TestAddReactionNonMemberForbidden(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	reactionRepo := new(mocks.ReactionRepositoryMock)
	handler := NewReactionHandler(groupRepo, messageRepo, reactionRepo, ws.NewHub(zap.NewNop()))
	router := setupReactionRouter(handler)

	messageRepo.On("GetMessage", mock.Anything, 12).Return(models.Message{ID: 12, GroupID: 5}, nil).Once()
	groupRepo.On("IsMember", mock.Anything, 5, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/12/reactions", bytes.NewBufferString(`{"emoji":"👍"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	reactionRepo.AssertNotCalled(t, "Add")
}

func TestRemoveAbsentReactionSucceeds(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	reactionRepo := new(mocks.ReactionRepositoryMock)
	handler := NewReactionHandler(groupRepo, messageRepo, reactionRepo, ws.NewHub(zap.NewNop()))
	router := setupReactionRouter(handler)

	messageRepo.On("GetMessage", mock.Anything, 12).Return(models.Message{ID: 12, GroupID: 5}, nil).Once()
	groupRepo.On("IsMember", mock.Anything, 5, 1).Return(true, nil).Once()
	reactionRepo.On("Remove", mock.Anything, 12, 1, "🔥").Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/messages/12/reactions", bytes.NewBufferString(`{"emoji":"🔥"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	reactionRepo.AssertExpectations(t)
}

func TestAddReactionMessageNotFound(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	reactionRepo := new(mocks.ReactionRepositoryMock)
	handler := NewReactionHandler(groupRepo, messageRepo, reactionRepo, ws.NewHub(zap.NewNop()))
	router := setupReactionRouter(handler)

	messageRepo.On("GetMessage", mock.Anything, 99).Return(models.Message{}, apperrors.ErrNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/99/reactions", bytes.NewBufferString(`{"emoji":"👍"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	reactionRepo.AssertNotCalled(t, "Add")
}

func TestListReactionsGroupedByEmoji(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	reactionRepo := new(mocks.ReactionRepositoryMock)
	handler := NewReactionHandler(groupRepo, messageRepo, reactionRepo, ws.NewHub(zap.NewNop()))
	router := setupReactionRouter(handler)

	messageRepo.On("GetMessage", mock.Anything, 12).Return(models.Message{ID: 12, GroupID: 5}, nil).Once()
	groupRepo.On("IsMember", mock.Anything, 5, 1).Return(true, nil).Once()
	reactionRepo.On("Aggregate", mock.Anything, 12).
		Return(map[string][]int{"👍": {1, 2}, "🔥": {3}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/12/reactions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Reactions map[string][]int `json:"reactions"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []int{1, 2}, resp.Reactions["👍"])
	reactionRepo.AssertExpectations(t)
}
