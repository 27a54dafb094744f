package discovery

import "errors"

// Common errors returned by the discovery package.
var (
	// ErrSessionNotFound is returned when a session directory does not exist.
	ErrSessionNotFound = errors.New("session directory not found")

	// ErrNoSessionsFound is returned when no session directories are discovered.
	ErrNoSessionsFound = errors.New("no sessions found")

	// ErrInvalidPath is returned when a path is invalid or inaccessible.
	ErrInvalidPath = errors.New("invalid or inaccessible path")
)
