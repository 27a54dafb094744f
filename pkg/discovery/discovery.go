// Package discovery provides functionality for discovering OpenCode
// session directories and the message files inside them.
//
// The storage layout is <messages_dir>/<session_id>/<message_id>.json.
// Session directories are returned most recent first, ranked by the newest
// message they hold.
//
// Example usage:
//
//	d := discovery.New([]string{"~/.local/share/opencode/storage/message"}, logger.Default())
//	sessions, err := d.Discover()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, s := range sessions {
//	    fmt.Printf("Session: %s, Files: %d\n", s.SessionID, s.FileCount)
//	}
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// MessageExt is the extension of message files.
const MessageExt = ".json"

// SessionIDPrefix is the prefix of every OpenCode session id.
const SessionIDPrefix = "ses_"

// Logger defines the logging interface used by the discovery package.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// SessionDir represents a discovered session directory.
type SessionDir struct {
	// SessionID is the directory name.
	SessionID string

	// Path is the absolute path to the directory.
	Path string

	// FileCount is the number of message files.
	FileCount int

	// Size is the total size of the message files in bytes.
	Size int64

	// ModTime is the newest message modification time.
	ModTime time.Time
}

// MessageFile represents one message file of a session.
type MessageFile struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// Discoverer provides methods for discovering OpenCode sessions.
type Discoverer interface {
	// Discover scans configured directories and returns all session
	// directories found, most recent first.
	//
	// Skips entries that are not directories or whose name is not a
	// session id.
	Discover() ([]SessionDir, error)

	// Recent returns at most n sessions, most recent first. n <= 0 means
	// no limit.
	Recent(n int) ([]SessionDir, error)

	// Latest returns the most recently active session.
	//
	// Returns ErrNoSessionsFound when no session exists.
	Latest() (SessionDir, error)

	// DiscoverSession describes a single session directory.
	//
	// Parameters:
	//   - path: Absolute or relative path to the session directory
	//
	// Returns ErrSessionNotFound if the directory does not exist.
	DiscoverSession(path string) (SessionDir, error)

	// MessageFiles lists the message files of a session directory sorted
	// by name.
	MessageFiles(path string) ([]MessageFile, error)
}

// discoverer implements the Discoverer interface.
type discoverer struct {
	baseDirs []string // message storage directories to scan
	logger   Logger
}

// New creates a new Discoverer instance.
//
// Parameters:
//   - baseDirs: List of message storage directories to scan
//   - logger: Logger instance for diagnostic messages
//
// Returns a configured Discoverer.
func New(baseDirs []string, logger Logger) Discoverer {
	return &discoverer{
		baseDirs: baseDirs,
		logger:   logger,
	}
}

// Discover implements Discoverer.Discover.
func (d *discoverer) Discover() ([]SessionDir, error) {
	var all []SessionDir

	for _, baseDir := range d.baseDirs {
		// Expand home directory if present
		expandedDir := ExpandHome(baseDir)

		// Check if directory exists
		if _, err := os.Stat(expandedDir); err != nil {
			if os.IsNotExist(err) {
				d.logger.Warn("directory not found, skipping", "path", expandedDir)
				continue
			}
			return nil, fmt.Errorf("failed to stat directory %s: %w", expandedDir, err)
		}

		sessions, err := d.scanBaseDirectory(expandedDir)
		if err != nil {
			return nil, fmt.Errorf("failed to scan directory %s: %w", expandedDir, err)
		}

		all = append(all, sessions...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].ModTime.Equal(all[j].ModTime) {
			return all[i].ModTime.After(all[j].ModTime)
		}
		return all[i].SessionID < all[j].SessionID
	})

	d.logger.Info("discovery complete", "total_sessions", len(all))
	return all, nil
}

// Recent implements Discoverer.Recent.
func (d *discoverer) Recent(n int) ([]SessionDir, error) {
	sessions, err := d.Discover()
	if err != nil {
		return nil, err
	}
	if n > 0 && n < len(sessions) {
		sessions = sessions[:n]
	}
	return sessions, nil
}

// Latest implements Discoverer.Latest.
func (d *discoverer) Latest() (SessionDir, error) {
	sessions, err := d.Recent(1)
	if err != nil {
		return SessionDir{}, err
	}
	if len(sessions) == 0 {
		return SessionDir{}, ErrNoSessionsFound
	}
	return sessions[0], nil
}

// DiscoverSession implements Discoverer.DiscoverSession.
func (d *discoverer) DiscoverSession(path string) (SessionDir, error) {
	expandedPath := ExpandHome(path)

	info, err := os.Stat(expandedPath)
	if err != nil {
		if os.IsNotExist(err) {
			return SessionDir{}, fmt.Errorf("%w: %s", ErrSessionNotFound, expandedPath)
		}
		return SessionDir{}, fmt.Errorf("failed to stat directory %s: %w", expandedPath, err)
	}
	if !info.IsDir() {
		return SessionDir{}, fmt.Errorf("%w: %s is not a directory", ErrInvalidPath, expandedPath)
	}

	return d.describe(expandedPath)
}

// MessageFiles implements Discoverer.MessageFiles.
func (d *discoverer) MessageFiles(path string) ([]MessageFile, error) {
	dir := ExpandHome(path)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, dir)
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	files := make([]MessageFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), MessageExt) {
			continue
		}

		filePath := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			d.logger.Warn("failed to get file info",
				"path", filePath,
				"error", err)
			continue
		}

		files = append(files, MessageFile{
			Name:    entry.Name(),
			Path:    filePath,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	// os.ReadDir already sorts by name.
	return files, nil
}

// scanBaseDirectory scans a storage directory for session subdirectories.
func (d *discoverer) scanBaseDirectory(baseDir string) ([]SessionDir, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	sessions := make([]SessionDir, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		if !IsValidSessionID(entry.Name()) {
			d.logger.Debug("skipping non-session directory",
				"dir", entry.Name(),
				"reason", "invalid session ID format")
			continue
		}

		sessionPath := filepath.Join(baseDir, entry.Name())
		s, err := d.describe(sessionPath)
		if err != nil {
			d.logger.Warn("failed to scan session directory",
				"path", sessionPath,
				"error", err)
			continue
		}

		sessions = append(sessions, s)
	}

	return sessions, nil
}

// describe builds the SessionDir of a directory from its message files.
func (d *discoverer) describe(dir string) (SessionDir, error) {
	files, err := d.MessageFiles(dir)
	if err != nil {
		return SessionDir{}, err
	}

	s := SessionDir{
		SessionID: filepath.Base(dir),
		Path:      dir,
		FileCount: len(files),
	}
	for _, f := range files {
		s.Size += f.Size
		if f.ModTime.After(s.ModTime) {
			s.ModTime = f.ModTime
		}
	}

	d.logger.Debug("scanned session directory",
		"path", dir,
		"messages_found", s.FileCount)

	return s, nil
}

// ExpandHome expands ~ in file paths to the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	return filepath.Join(homeDir, path[2:])
}

// IsValidSessionID performs basic validation on session ID format.
//
// Expected format: "ses_" followed by one or more ASCII letters or digits.
// Example: ses_6f0e1c2a9ffeQ4bXk2LmN8pR.
func IsValidSessionID(id string) bool {
	rest, ok := strings.CutPrefix(id, SessionIDPrefix)
	if !ok || rest == "" {
		return false
	}

	for _, c := range rest {
		if !isIDChar(c) {
			return false
		}
	}

	return true
}

// isIDChar checks if a rune is an ASCII letter or digit.
func isIDChar(r rune) bool {
	return (r >= '0' && r <= '9') ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z')
}
