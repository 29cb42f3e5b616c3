package notify

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned when an operation is attempted with
	// no current user.
	ErrNotAuthenticated = errors.New("no authenticated user")

	// ErrNotInitialized is returned when the store is used before
	// Initialize. This is a programmer error and fails fast.
	ErrNotInitialized = errors.New("store not initialized")

	// ErrNotFound is returned when a notification id is absent from the
	// backend or the local set.
	ErrNotFound = errors.New("notification not found")

	// ErrUnknownType is returned when a type tag is outside the closed
	// enum.
	ErrUnknownType = errors.New("unknown notification type")
)

// PartialFailureError reports a batch operation that completed some, but
// not all, of its per-id writes. Succeeded ids stay applied; the caller
// decides how to surface the rest.
type PartialFailureError struct {
	FailedIDs map[string]error
	Total     int
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%d of %d notification writes failed", len(e.FailedIDs), e.Total)
}
