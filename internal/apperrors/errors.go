// Package apperrors defines the error taxonomy shared across the messaging core.
// Handlers translate these sentinels to HTTP statuses; repositories translate
// driver-level failures (sql.ErrNoRows, unique-constraint violations) into them.
package apperrors

import "errors"

var (
	// ErrUnauthenticated means no actor context was established for the call.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden means the actor lacks membership or ownership for the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation means the input was malformed (empty content, empty name, oversize).
	ErrValidation = errors.New("validation failed")

	// ErrPolicyViolation means the attachment was rejected by the size/type policy.
	ErrPolicyViolation = errors.New("policy violation")

	// ErrConflict means a unique key already exists. Callers that rely on
	// conflict-for-idempotence (reactions, direct groups, read receipts) must
	// recover it locally and never surface it.
	ErrConflict = errors.New("conflict")

	// ErrNotFound means the referenced group, message or attachment is absent.
	ErrNotFound = errors.New("not found")

	// ErrExpired means the attachment's expiry timestamp has passed.
	ErrExpired = errors.New("attachment expired")

	// ErrBackendUnavailable means a collaborator call failed for infra reasons.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrPartialWrite means the object was stored but its metadata row was not.
	// The orphaned object is kept; the caller reports partial success.
	ErrPartialWrite = errors.New("object stored but metadata registration failed")
)
