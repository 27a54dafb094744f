package reader

import (
	"errors"

	"github.com/0xmhha/session-monitor/pkg/discovery"
)

// Common errors returned by the reader.
var (
	// ErrSessionNotFound is returned when a session directory does not exist.
	ErrSessionNotFound = discovery.ErrSessionNotFound

	// ErrReaderClosed is returned when using a closed reader.
	ErrReaderClosed = errors.New("reader is closed")

	// ErrStoreClosed is returned when using a closed snapshot store.
	ErrStoreClosed = errors.New("snapshot store is closed")
)
