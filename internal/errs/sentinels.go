// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyCompleted indicates a care task was already closed.
	ErrAlreadyCompleted = errors.New("already completed")

	// ErrInvalidFrequency indicates a non-positive frequency-days value.
	ErrInvalidFrequency = errors.New("invalid frequency")

	// ErrPendingExists indicates an incomplete task already exists for the (plant, action) pair.
	ErrPendingExists = errors.New("pending task exists")

	// ErrConflict indicates a write based on a stale read of the stored document.
	ErrConflict = errors.New("conflict")

	// ErrStoreUnavailable indicates the backing store could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation")

	// ErrRateLimited indicates the client is temporarily blocked.
	ErrRateLimited = errors.New("rate limited")
)
