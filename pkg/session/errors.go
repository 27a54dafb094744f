package session

import "errors"

// Common errors returned when validating session data.
var (
	// ErrEmptySessionID is returned when a session has no identifier.
	ErrEmptySessionID = errors.New("session id cannot be empty")

	// ErrDuplicateFile is returned when two interactions share a file name.
	ErrDuplicateFile = errors.New("duplicate interaction file name")
)
