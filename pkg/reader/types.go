// Package reader loads session directories into session.SessionData.
//
// Every message file of a session is parsed; user messages are skipped and
// bad files are logged and skipped so one corrupt message never fails the
// whole session. Loaded sessions can be cached in a SnapshotStore keyed by
// directory and invalidated by a fingerprint of the directory contents.
//
// Example usage:
//
//	store, err := reader.NewBoltSnapshotStore(reader.StoreConfig{
//	    DBPath: "~/.session-monitor/cache.db",
//	}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	r, err := reader.New(reader.Config{
//	    Discoverer: discovery.New(dirs, log),
//	    Parser:     parser.New(),
//	    Store:      store,
//	}, log)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	sessions, err := r.LoadRecent(ctx, 20)
package reader

import (
	"context"
	"time"

	"github.com/0xmhha/session-monitor/pkg/discovery"
	"github.com/0xmhha/session-monitor/pkg/parser"
	"github.com/0xmhha/session-monitor/pkg/session"
)

// Fingerprint identifies the contents of a session directory. A cached
// snapshot is valid only while the fingerprint is unchanged.
type Fingerprint struct {
	FileCount int       `json:"file_count"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"mod_time"`
}

// Equal reports whether two fingerprints describe the same contents.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f.FileCount == other.FileCount &&
		f.Size == other.Size &&
		f.ModTime.Equal(other.ModTime)
}

// FingerprintOf returns the fingerprint of a discovered directory.
func FingerprintOf(dir discovery.SessionDir) Fingerprint {
	return Fingerprint{
		FileCount: dir.FileCount,
		Size:      dir.Size,
		ModTime:   dir.ModTime,
	}
}

// Snapshot is a cached, fully loaded session.
type Snapshot struct {
	Fingerprint Fingerprint         `json:"fingerprint"`
	Session     session.SessionData `json:"session"`
}

// SnapshotStore provides persistence for loaded sessions.
type SnapshotStore interface {
	// Get retrieves the snapshot of a session directory.
	//
	// Returns nil and no error when nothing is stored.
	Get(dir string) (*Snapshot, error)

	// Put stores the snapshot of a session directory.
	Put(dir string, snap Snapshot) error

	// Delete removes the snapshot of a session directory.
	Delete(dir string) error

	// Close releases the store.
	Close() error
}

// Reader loads sessions from disk.
type Reader interface {
	// ReadSession loads a single session directory.
	//
	// Parameters:
	//   - ctx: Context for cancellation
	//   - dir: Path to the session directory
	//
	// Returns ErrSessionNotFound if the directory does not exist.
	ReadSession(ctx context.Context, dir string) (session.SessionData, error)

	// ReadAll loads several session directories in parallel. The result
	// keeps the order of dirs; directories that vanished are skipped.
	ReadAll(ctx context.Context, dirs []string) ([]session.SessionData, error)

	// LoadRecent discovers and loads at most limit sessions, most recent
	// first. limit <= 0 loads everything.
	LoadRecent(ctx context.Context, limit int) ([]session.SessionData, error)

	// Close closes the reader and its snapshot store.
	Close() error
}

// Config contains reader configuration.
type Config struct {
	// Discoverer lists session directories and message files.
	Discoverer discovery.Discoverer

	// Parser parses message files.
	Parser parser.Parser

	// Store caches loaded sessions. Nil disables caching.
	Store SnapshotStore

	// SessionInfoDir holds optional <session_id>.json title files.
	SessionInfoDir string

	// Workers bounds the number of sessions loaded concurrently.
	// Default: 4.
	Workers int

	// MaxRetries is the maximum number of retry attempts for transient errors.
	// Default: 2. Negative disables retries.
	MaxRetries int

	// RetryDelay is the base delay between retry attempts.
	// Uses exponential backoff: delay * 2^attempt.
	// Default: 50ms.
	RetryDelay time.Duration
}
