// Package watcher provides real-time monitoring of session message files.
//
// It uses fsnotify to watch the message storage directory for changes to
// message files and debounces the bursts of writes a client produces while
// streaming a response. Session directories created after Start are added
// to the watch automatically.
//
// Example usage:
//
//	w, err := watcher.New(watcher.Config{
//	    DebounceInterval: 250 * time.Millisecond,
//	}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Close()
//
//	if err := w.Start(ctx, []string{"~/.local/share/opencode/storage/message"}); err != nil {
//	    log.Fatal(err)
//	}
//
//	for event := range w.Events() {
//	    fmt.Printf("%s %s: %s\n", event.SessionID, event.Path, event.Op)
//	}
package watcher

import (
	"context"
	"time"
)

// Op describes a file operation type.
type Op uint32

// File operation types.
const (
	OpCreate Op = 1 << iota // File created
	OpWrite                 // File modified
	OpRemove                // File deleted
	OpRename                // File renamed/moved
	OpChmod                 // File permissions changed
)

// String returns a human-readable operation name.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	case OpRename:
		return "RENAME"
	case OpChmod:
		return "CHMOD"
	default:
		return "UNKNOWN"
	}
}

// Event represents a change to a message file.
type Event struct {
	// Path is the path of the message file.
	Path string

	// SessionID is the name of the session directory holding the file,
	// empty when the directory name is not a valid session id.
	SessionID string

	// Op is the operation that triggered the event.
	Op Op

	// Timestamp is when the last coalesced event occurred.
	Timestamp time.Time
}

// Watcher provides file system monitoring.
type Watcher interface {
	// Start begins watching the specified directories and their
	// subdirectories. It returns once the watches are registered; events
	// are delivered until ctx is cancelled or Stop is called.
	//
	// Returns ErrInvalidPath if none of the paths exist.
	Start(ctx context.Context, paths []string) error

	// Stop halts event processing.
	Stop() error

	// Events returns the channel for receiving debounced events.
	// The channel is closed by Close.
	Events() <-chan Event

	// Errors returns the channel for receiving non-fatal watcher errors.
	// The channel is closed by Close.
	Errors() <-chan error

	// Close stops the watcher and releases resources.
	Close() error
}

// Config contains watcher configuration.
type Config struct {
	// DebounceInterval is the time to wait before emitting an event.
	// Multiple events for the same file within this interval are coalesced.
	// Default: 100ms.
	DebounceInterval time.Duration

	// Extension selects the files reported.
	// Default: ".json".
	Extension string

	// CircuitBreakerThreshold is the number of consecutive fsnotify
	// errors after which ErrCircuitBreakerOpen is reported.
	// Default: 5.
	CircuitBreakerThreshold int

	// BufferSize is the capacity of the event channel. Events are dropped
	// when a slow consumer lets it fill.
	// Default: 100.
	BufferSize int
}
