package reader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/0xmhha/session-monitor/pkg/discovery"
	"github.com/0xmhha/session-monitor/pkg/logger"
)

var (
	bucketSnapshots = []byte("session_snapshots") // Dir -> Snapshot
)

// StoreConfig contains snapshot database configuration.
type StoreConfig struct {
	// DBPath is the path to the BoltDB file.
	DBPath string

	// Timeout is how long to wait for the database file lock.
	// Default: 1s.
	Timeout time.Duration
}

// boltSnapshotStore implements SnapshotStore using BoltDB.
type boltSnapshotStore struct {
	db     *bolt.DB
	logger logger.Logger
}

// NewBoltSnapshotStore opens (or creates) a BoltDB snapshot store.
//
// Parameters:
//   - cfg: Store configuration
//   - log: Logger instance
//
// Returns:
//   - Configured SnapshotStore
//   - Error if the database cannot be opened
func NewBoltSnapshotStore(cfg StoreConfig, log logger.Logger) (SnapshotStore, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}

	dbPath := discovery.ExpandHome(cfg.DBPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, createErr := tx.CreateBucketIfNotExists(bucketSnapshots)
		return createErr
	}); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close database after initialization error",
				"error", closeErr)
		}
		return nil, fmt.Errorf("failed to create snapshots bucket: %w", err)
	}

	log.Debug("snapshot store opened", "db_path", dbPath)

	return &boltSnapshotStore{
		db:     db,
		logger: log,
	}, nil
}

// Get implements SnapshotStore.Get.
func (s *boltSnapshotStore) Get(dir string) (*Snapshot, error) {
	var snap *Snapshot

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSnapshots).Get([]byte(dir))
		if data == nil {
			return nil
		}

		var decoded Snapshot
		if err := json.Unmarshal(data, &decoded); err != nil {
			return fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
		snap = &decoded
		return nil
	})
	if err != nil {
		return nil, err
	}

	return snap, nil
}

// Put implements SnapshotStore.Put.
func (s *boltSnapshotStore) Put(dir string, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if putErr := tx.Bucket(bucketSnapshots).Put([]byte(dir), data); putErr != nil {
			return fmt.Errorf("failed to store snapshot: %w", putErr)
		}
		return nil
	})
}

// Delete implements SnapshotStore.Delete.
func (s *boltSnapshotStore) Delete(dir string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Delete([]byte(dir))
	})
}

// Close implements SnapshotStore.Close.
func (s *boltSnapshotStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// memorySnapshotStore implements SnapshotStore using an in-memory map.
// Useful for testing.
type memorySnapshotStore struct {
	snapshots map[string]Snapshot
	mu        sync.RWMutex
	closed    bool
}

// NewMemorySnapshotStore creates an in-memory snapshot store.
func NewMemorySnapshotStore() SnapshotStore {
	return &memorySnapshotStore{
		snapshots: make(map[string]Snapshot),
	}
}

// Get implements SnapshotStore.Get.
func (s *memorySnapshotStore) Get(dir string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	snap, exists := s.snapshots[dir]
	if !exists {
		return nil, nil
	}
	return &snap, nil
}

// Put implements SnapshotStore.Put.
func (s *memorySnapshotStore) Put(dir string, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	s.snapshots[dir] = snap
	return nil
}

// Delete implements SnapshotStore.Delete.
func (s *memorySnapshotStore) Delete(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, dir)
	return nil
}

// Close implements SnapshotStore.Close.
func (s *memorySnapshotStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
