// Package policy invokes the attachment-validation function. Size and MIME
// rules live behind a synchronous request/response boundary so policy can
// change without touching the schema or this service.
package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
)

// Validator decides whether a file may be attached in a group and issues the
// attachment's expiry timestamp.
type Validator interface {
	Validate(ctx context.Context, descriptor models.FileDescriptor, groupID int) (Result, error)
}

// Result is the outcome of a validation pass. The expiry is set here, at
// validation time, and is never extended afterwards.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Client calls the validation function over HTTP.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient constructs a Client for the configured function endpoint.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

type validateRequest struct {
	GroupID   int    `json:"group_id"`
	FileName  string `json:"file_name"`
	SizeBytes int64  `json:"size_bytes"`
	MimeType  string `json:"mime_type"`
}

// Validate invokes the function. A deny decision maps to ErrPolicyViolation;
// transport or non-2xx failures map to ErrBackendUnavailable.
func (c *Client) Validate(ctx context.Context, descriptor models.FileDescriptor, groupID int) (Result, error) {
	body, err := json.Marshal(validateRequest{
		GroupID:   groupID,
		FileName:  descriptor.FileName,
		SizeBytes: descriptor.SizeBytes,
		MimeType:  descriptor.MimeType,
	})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", apperrors.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("%w: policy function returned %d", apperrors.ErrBackendUnavailable, resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("%w: %v", apperrors.ErrBackendUnavailable, err)
	}
	if !result.Allowed {
		return result, fmt.Errorf("%w: %s", apperrors.ErrPolicyViolation, result.Reason)
	}
	return result, nil
}
