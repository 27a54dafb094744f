package reader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/0xmhha/session-monitor/pkg/discovery"
	"github.com/0xmhha/session-monitor/pkg/logger"
	"github.com/0xmhha/session-monitor/pkg/parser"
	"github.com/0xmhha/session-monitor/pkg/session"
)

// reader implements the Reader interface.
type reader struct {
	discoverer discovery.Discoverer
	parser     parser.Parser
	store      SnapshotStore
	logger     logger.Logger
	config     Config

	mu     sync.RWMutex
	closed bool
}

// New creates a new session reader.
//
// Parameters:
//   - cfg: Reader configuration
//   - log: Logger instance
//
// Returns:
//   - Configured Reader
//   - Error if configuration is invalid
func New(cfg Config, log logger.Logger) (Reader, error) {
	if cfg.Discoverer == nil {
		return nil, fmt.Errorf("discoverer is required")
	}

	if cfg.Parser == nil {
		return nil, fmt.Errorf("parser is required")
	}

	// Set defaults.
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	} else if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 50 * time.Millisecond
	}

	log.Debug("session reader created",
		"workers", cfg.Workers,
		"max_retries", cfg.MaxRetries,
		"retry_delay", cfg.RetryDelay,
		"cache", cfg.Store != nil)

	return &reader{
		discoverer: cfg.Discoverer,
		parser:     cfg.Parser,
		store:      cfg.Store,
		logger:     log,
		config:     cfg,
	}, nil
}

// ReadSession implements Reader.ReadSession.
func (r *reader) ReadSession(ctx context.Context, dir string) (session.SessionData, error) {
	if r.isClosed() {
		return session.SessionData{}, ErrReaderClosed
	}

	sd, err := r.discoverer.DiscoverSession(dir)
	if err != nil {
		return session.SessionData{}, err
	}

	fp := FingerprintOf(sd)
	if cached, ok := r.cached(sd.Path, fp); ok {
		// Titles live outside the session directory and are not fingerprinted.
		cached.SessionTitle = r.title(sd.SessionID)
		return cached, nil
	}

	files, err := r.discoverer.MessageFiles(sd.Path)
	if err != nil {
		return session.SessionData{}, err
	}

	data := session.SessionData{
		SessionID: sd.SessionID,
		Files:     make([]session.InteractionFile, 0, len(files)),
	}

	skipped := 0
	for _, f := range files {
		msg, err := r.parseWithRetry(ctx, f.Path)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return session.SessionData{}, ctxErr
			}
			if !errors.Is(err, parser.ErrNotInteraction) {
				skipped++
				r.logger.Warn("skipping message file",
					"path", f.Path,
					"error", err)
			}
			continue
		}

		if data.ProjectName == "" {
			data.ProjectName = msg.ProjectName()
		}
		data.Files = append(data.Files, msg.Interaction(f.Name))
	}

	data.SessionTitle = r.title(sd.SessionID)

	r.logger.Debug("session loaded",
		"session", sd.SessionID,
		"interactions", len(data.Files),
		"skipped", skipped)

	r.remember(sd.Path, fp, data)
	return data, nil
}

// ReadAll implements Reader.ReadAll.
func (r *reader) ReadAll(ctx context.Context, dirs []string) ([]session.SessionData, error) {
	if r.isClosed() {
		return nil, ErrReaderClosed
	}

	results := make([]*session.SessionData, len(dirs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Workers)

	for i, dir := range dirs {
		i, dir := i, dir
		g.Go(func() error {
			data, err := r.ReadSession(gctx, dir)
			if errors.Is(err, ErrSessionNotFound) {
				r.logger.Warn("session vanished, skipping", "path", dir)
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to read session %s: %w", dir, err)
			}
			results[i] = &data
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sessions := make([]session.SessionData, 0, len(dirs))
	for _, s := range results {
		if s != nil {
			sessions = append(sessions, *s)
		}
	}
	return sessions, nil
}

// LoadRecent implements Reader.LoadRecent.
func (r *reader) LoadRecent(ctx context.Context, limit int) ([]session.SessionData, error) {
	dirs, err := r.discoverer.Recent(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to discover sessions: %w", err)
	}

	paths := make([]string, len(dirs))
	for i, d := range dirs {
		paths[i] = d.Path
	}

	return r.ReadAll(ctx, paths)
}

// Close implements Reader.Close.
func (r *reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			return fmt.Errorf("failed to close snapshot store: %w", err)
		}
	}

	r.logger.Debug("reader closed")
	return nil
}

func (r *reader) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// cached returns the stored session if its fingerprint still matches.
func (r *reader) cached(dir string, fp Fingerprint) (session.SessionData, bool) {
	if r.store == nil {
		return session.SessionData{}, false
	}

	snap, err := r.store.Get(dir)
	if err != nil {
		r.logger.Warn("failed to read snapshot", "path", dir, "error", err)
		return session.SessionData{}, false
	}
	if snap == nil || !snap.Fingerprint.Equal(fp) {
		return session.SessionData{}, false
	}

	r.logger.Debug("snapshot hit", "path", dir)
	return snap.Session, true
}

func (r *reader) remember(dir string, fp Fingerprint, data session.SessionData) {
	if r.store == nil {
		return
	}
	if err := r.store.Put(dir, Snapshot{Fingerprint: fp, Session: data}); err != nil {
		// Don't fail the read, just log the error.
		r.logger.Warn("failed to store snapshot", "path", dir, "error", err)
	}
}

// title reads the optional session title file.
func (r *reader) title(sessionID string) string {
	if r.config.SessionInfoDir == "" {
		return ""
	}

	path := filepath.Join(discovery.ExpandHome(r.config.SessionInfoDir), sessionID+".json")
	info, err := r.parser.ParseSessionInfo(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.logger.Debug("failed to read session info", "path", path, "error", err)
		}
		return ""
	}
	return info.Title
}

// parseWithRetry parses a message file with retry logic.
func (r *reader) parseWithRetry(ctx context.Context, path string) (*parser.Message, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff.
			backoffMultiplier := 1 << (attempt - 1) // nolint:gosec // Attempt is bounded by MaxRetries
			delay := r.config.RetryDelay * time.Duration(backoffMultiplier)
			r.logger.Debug("retrying parse",
				"path", path,
				"attempt", attempt,
				"delay", delay)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		msg, err := r.parser.ParseFile(path)
		if err == nil {
			return msg, nil
		}

		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// isRetryable checks if an error is retryable. A malformed file may still
// be being written, so parse errors are retried; everything that cannot
// change by waiting is not.
func isRetryable(err error) bool {
	var validationErr *parser.ValidationError
	switch {
	case errors.Is(err, parser.ErrNotInteraction):
		return false
	case errors.As(err, &validationErr):
		return false
	case errors.Is(err, parser.ErrFileTooLarge):
		return false
	case errors.Is(err, os.ErrNotExist):
		return false
	case errors.Is(err, os.ErrPermission):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		return true
	}
}
