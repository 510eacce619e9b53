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

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/groups/:group_id/messages", handler.ListMessages)
	r.POST("/groups/:group_id/messages", handler.PostMessage)
	r.PATCH("/groups/:group_id/messages/:message_id", handler.EditMessage)
	r.DELETE("/groups/:group_id/messages/:message_id", handler.DeleteMessage)
	return r
}

func TestListMessagesSuccess(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(groupRepo, messageRepo, ws.NewHub(zap.NewNop()), nil, nil)
	router := setupMessageRouter(handler)

	groupRepo.On("IsMember", mock.Anything, 5, 1).Return(true, nil).Once()
	messageRepo.On("Page", mock.Anything, 5, 50, 0).
		Return([]models.Message{{ID: 1, GroupID: 5}, {ID: 2, GroupID: 5}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/groups/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 2)
	groupRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestPostMessageBroadcastsAndClearsTyping(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	hub := ws.NewHub(zap.NewNop())
	handler := NewMessageHandler(groupRepo, messageRepo, hub, nil, nil)
	router := setupMessageRouter(handler)

	sub := hub.Subscribe(5)
	defer hub.Unsubscribe(sub)

	groupRepo.On("IsMember", mock.Anything, 5, 1).Return(true, nil).Once()
	groupRepo.On("GetGroup", mock.Anything, 5).Return(models.ChatGroup{ID: 5}, nil).Once()
	messageRepo.On("Send", mock.Anything, 5, 1, "load ready at landing 4", models.MessageText).
		Return(models.Message{ID: 12, GroupID: 5, SenderID: 1, Content: "load ready at landing 4", Status: models.StatusActive}, nil).Once()

	body := bytes.NewBufferString(`{"content":"load ready at landing 4"}`)
	req := httptest.NewRequest(http.MethodPost, "/groups/5/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	select {
	case ev := <-sub.C:
		assert.Equal(t, models.EventMessageCreated, ev.Type)
		require.NotNil(t, ev.Message)
		assert.Equal(t, 12, ev.Message.ID)
	case <-time.After(time.Second):
		t.Fatal("no event published to group stream")
	}
	groupRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestPostMessageArchivedGroup(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(groupRepo, messageRepo, ws.NewHub(zap.NewNop()), nil, nil)
	router := setupMessageRouter(handler)

	groupRepo.On("IsMember", mock.Anything, 5, 1).Return(true, nil).Once()
	groupRepo.On("GetGroup", mock.Anything, 5).Return(models.ChatGroup{ID: 5, Archived: true}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/groups/5/messages", bytes.NewBufferString(`{"content":"hello"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	messageRepo.AssertNotCalled(t, "Send")
}

func TestPostMessageNonMemberForbidden(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(groupRepo, messageRepo, ws.NewHub(zap.NewNop()), nil, nil)
	router := setupMessageRouter(handler)

	groupRepo.On("IsMember", mock.Anything, 5, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/groups/5/messages", bytes.NewBufferString(`{"content":"hello"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messageRepo.AssertNotCalled(t, "Send")
}

func TestPostMessageContentTooLong(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(groupRepo, messageRepo, ws.NewHub(zap.NewNop()), nil, nil)
	router := setupMessageRouter(handler)

	groupRepo.On("IsMember", mock.Anything, 5, 1).Return(true, nil).Once()
	groupRepo.On("GetGroup", mock.Anything, 5).Return(models.ChatGroup{ID: 5}, nil).Once()
	messageRepo.On("Send", mock.Anything, 5, 1, "over", models.MessageText).
		Return(models.Message{}, apperrors.ErrValidation).Once()

	req := httptest.NewRequest(http.MethodPost, "/groups/5/messages", bytes.NewBufferString(`{"content":"over"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	messageRepo.AssertExpectations(t)
}

// A kind outside the known set must be rejected as a client error before the
// insert is attempted, not surfaced as a driver failure.
func TestPostMessageRejectsUnknownKind(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(groupRepo, messageRepo, ws.NewHub(zap.NewNop()), nil, nil)
	router := setupMessageRouter(handler)

	groupRepo.On("IsMember", mock.Anything, 5, 1).Return(true, nil).Twice()
	groupRepo.On("GetGroup", mock.Anything, 5).Return(models.ChatGroup{ID: 5}, nil).Twice()

	for _, kind := range []string{"bogus", "system"} {
		req := httptest.NewRequest(http.MethodPost, "/groups/5/messages",
			bytes.NewBufferString(`{"content":"hello","kind":"`+kind+`"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, "kind %q", kind)
	}
	messageRepo.AssertNotCalled(t, "Send")
}

func TestEditMessageNotSenderForbidden(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(groupRepo, messageRepo, ws.NewHub(zap.NewNop()), nil, nil)
	router := setupMessageRouter(handler)

	groupRepo.On("IsMember", mock.Anything, 5, 1).Return(true, nil).Once()
	messageRepo.On("GetMessage", mock.Anything, 12).Return(models.Message{ID: 12, GroupID: 5, SenderID: 2}, nil).Once()
	messageRepo.On("Edit", mock.Anything, 12, 1, "rewritten").Return(models.Message{}, apperrors.ErrForbidden).Once()

	req := httptest.NewRequest(http.MethodPatch, "/groups/5/messages/12", bytes.NewBufferString(`{"content":"rewritten"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestEditMessageWrongGroup(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(groupRepo, messageRepo, ws.NewHub(zap.NewNop()), nil, nil)
	router := setupMessageRouter(handler)

	groupRepo.On("IsMember", mock.Anything, 5, 1).Return(true, nil).Once()
	messageRepo.On("GetMessage", mock.Anything, 12).Return(models.Message{ID: 12, GroupID: 8}, nil).Once()

	req := httptest.NewRequest(http.MethodPatch, "/groups/5/messages/12", bytes.NewBufferString(`{"content":"x"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	messageRepo.AssertNotCalled(t, "Edit")
}

func TestDeleteMessagePublishesRemoval(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	hub := ws.NewHub(zap.NewNop())
	handler := NewMessageHandler(groupRepo, messageRepo, hub, nil, nil)
	router := setupMessageRouter(handler)

	sub := hub.Subscribe(5)
	defer hub.Unsubscribe(sub)

	groupRepo.On("IsMember", mock.Anything, 5, 1).Return(true, nil).Once()
	messageRepo.On("GetMessage", mock.Anything, 12).Return(models.Message{ID: 12, GroupID: 5, SenderID: 1}, nil).Once()
	messageRepo.On("SoftDelete", mock.Anything, 12, 1).
		Return(models.Message{ID: 12, GroupID: 5, Status: models.StatusDeleted}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/groups/5/messages/12", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)

	select {
	case ev := <-sub.C:
		assert.Equal(t, models.EventMessageDeleted, ev.Type)
		assert.Equal(t, 12, ev.MessageID)
	case <-time.After(time.Second):
		t.Fatal("no delete event published")
	}
	messageRepo.AssertExpectations(t)
}
