package policy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
)

func pdfDescriptor() models.FileDescriptor {
	return models.FileDescriptor{FileName: "manifest.pdf", SizeBytes: 2048, MimeType: "application/pdf"}
}

func TestValidateAllowed(t *testing.T) {
	expiry := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.EqualValues(t, 5, req["group_id"])
		assert.Equal(t, "manifest.pdf", req["file_name"])

		json.NewEncoder(w).Encode(Result{Allowed: true, ExpiresAt: expiry})
	}))
	defer srv.Close()

	result, err := NewClient(srv.URL).Validate(context.Background(), pdfDescriptor(), 5)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.True(t, result.ExpiresAt.Equal(expiry))
}

func TestValidateDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Result{Allowed: false, Reason: "file type not allowed"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Validate(context.Background(), pdfDescriptor(), 5)
	require.ErrorIs(t, err, apperrors.ErrPolicyViolation)
	assert.Contains(t, err.Error(), "file type not allowed")
}

func TestValidateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Validate(context.Background(), pdfDescriptor(), 5)
	require.ErrorIs(t, err, apperrors.ErrBackendUnavailable)
}

func TestValidateUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := NewClient(srv.URL).Validate(context.Background(), pdfDescriptor(), 5)
	require.ErrorIs(t, err, apperrors.ErrBackendUnavailable)
}

func TestValidateMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Validate(context.Background(), pdfDescriptor(), 5)
	require.ErrorIs(t, err, apperrors.ErrBackendUnavailable)
}
