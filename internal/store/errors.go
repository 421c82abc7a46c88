package store

import (
	"errors"

	"github.com/jobops/jobops/internal/types"
)

// Sentinel errors returned by Store operations.
//
// Callers should use errors.Is to check for specific errors:
//
//	if _, err := s.Update(id, patch); errors.Is(err, store.ErrNotFound) {
//	    // handle missing record
//	}
var (
	// ErrNotFound is returned by Update for an id not in the collection.
	ErrNotFound = errors.New("job not found")

	// ErrNotReady is returned by mutations attempted before the initial
	// load has completed.
	ErrNotReady = errors.New("store not ready")

	// ErrInvalidState is returned when BeginLoad or CompleteLoad is called
	// out of order.
	ErrInvalidState = errors.New("invalid store state transition")

	// ErrMissingField is returned when company or role is blank.
	ErrMissingField = types.ErrMissingField

	// ErrInvalidStatus is returned for a status outside the closed set.
	ErrInvalidStatus = types.ErrInvalidStatus
)
