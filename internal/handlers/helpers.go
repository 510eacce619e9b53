package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messaging-service/internal/apperrors"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) *int64 {
	if val, ok := c.Get("userID"); ok {
		switch userID := val.(type) {
		case int:
			if userID != 0 {
				value := int64(userID)
				return &value
			}
		case int64:
			if userID != 0 {
				value := userID
				return &value
			}
		}
	}
	return nil
}

func pathInt(c *gin.Context, name string) (int, bool) {
	value, err := strconv.Atoi(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return value, true
}

// respondError maps the error taxonomy to HTTP statuses. Conflicts recovered
// by the idempotent paths never reach this point.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperrors.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperrors.ErrPolicyViolation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, apperrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperrors.ErrExpired):
		status = http.StatusGone
	case errors.Is(err, apperrors.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, apperrors.ErrBackendUnavailable):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
