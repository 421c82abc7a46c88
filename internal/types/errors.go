package types

import "errors"

// Validation errors shared by the store, the mirror, and importers.
//
// Check them with errors.Is:
//
//	if errors.Is(err, types.ErrMissingField) {
//	    // company or role was blank
//	}
var (
	// ErrMissingField is returned when company or role is blank.
	ErrMissingField = errors.New("required field missing")

	// ErrInvalidStatus is returned for a status outside the closed enumeration.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidFieldType is returned for a custom field type other than
	// text, date, url, or number.
	ErrInvalidFieldType = errors.New("invalid custom field type")
)
