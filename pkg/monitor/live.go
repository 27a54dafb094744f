package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/0xmhha/session-monitor/pkg/burnrate"
	"github.com/0xmhha/session-monitor/pkg/discovery"
	"github.com/0xmhha/session-monitor/pkg/health"
	"github.com/0xmhha/session-monitor/pkg/logger"
	"github.com/0xmhha/session-monitor/pkg/reader"
	"github.com/0xmhha/session-monitor/pkg/session"
	"github.com/0xmhha/session-monitor/pkg/watcher"
)

// liveMonitor implements the LiveMonitor interface.
type liveMonitor struct {
	config    Config
	logger    logger.Logger
	watcher   watcher.Watcher
	reader    reader.Reader
	discovery discovery.Discoverer

	mu       sync.RWMutex
	running  bool
	closed   bool
	stopChan chan struct{}

	// Followed session state
	dir      string
	baseline *Update
	last     *Update

	// Update channel for consumers
	updates chan Update
}

// New creates a new live monitor.
//
// Parameters:
//   - cfg: Monitor configuration
//   - w: File watcher
//   - r: Session reader
//   - disc: Session discovery over the messages directory
//   - log: Logger instance
//
// Returns:
//   - Configured LiveMonitor
//   - Error if configuration is invalid
func New(cfg Config, w watcher.Watcher, r reader.Reader, disc discovery.Discoverer, log logger.Logger) (LiveMonitor, error) {
	if w == nil || r == nil || disc == nil {
		return nil, fmt.Errorf("%w: watcher, reader and discoverer are required", ErrInvalidConfig)
	}
	if cfg.MessagesDir == "" && cfg.SessionDir == "" {
		return nil, fmt.Errorf("%w: messages or session directory is required", ErrInvalidConfig)
	}
	if log == nil {
		log = logger.Noop()
	}

	// Set defaults.
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 5 * time.Second
	}
	if cfg.BurnRateWindow <= 0 {
		cfg.BurnRateWindow = burnrate.DefaultWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Meter == nil {
		cfg.Meter = burnrate.New(burnrate.Config{Now: cfg.Now, Logger: log})
	}
	if cfg.Validator == nil {
		cfg.Validator = health.New(health.Config{}, cfg.Pricing)
	}

	m := &liveMonitor{
		config:    cfg,
		logger:    log,
		watcher:   w,
		reader:    r,
		discovery: disc,
		updates:   make(chan Update, 10),
	}

	log.Debug("live monitor created",
		"refresh_interval", cfg.RefreshInterval,
		"session_dir", cfg.SessionDir)

	return m, nil
}

// Start implements LiveMonitor.Start.
func (m *liveMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrMonitorClosed
	}
	if m.running {
		return ErrMonitorRunning
	}

	dir, err := m.resolve()
	if err != nil {
		return err
	}
	m.dir = dir

	watchRoot := m.config.MessagesDir
	if m.pinned() {
		watchRoot = dir
	}

	m.logger.Info("monitoring session", "dir", dir, "watch", watchRoot)

	// Initial update
	update, err := m.compute(ctx, dir)
	if err != nil {
		return fmt.Errorf("initial read failed: %w", err)
	}
	m.publishLocked(update)

	// Start file watcher
	if err := m.watcher.Start(ctx, []string{watchRoot}); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	m.running = true
	m.stopChan = make(chan struct{})
	go m.run(ctx, m.stopChan)

	m.logger.Info("live monitor started")
	return nil
}

// Stop implements LiveMonitor.Stop.
func (m *liveMonitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrMonitorClosed
	}
	if !m.running {
		return ErrMonitorNotRunning
	}

	m.stopLocked()
	m.logger.Info("live monitor stopped")
	return nil
}

// Updates implements LiveMonitor.Updates.
func (m *liveMonitor) Updates() <-chan Update {
	return m.updates
}

// Latest implements LiveMonitor.Latest.
func (m *liveMonitor) Latest() (Update, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.last == nil {
		return Update{}, false
	}
	return *m.last, true
}

// Close implements LiveMonitor.Close.
func (m *liveMonitor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	if m.running {
		m.stopLocked()
	}

	// Close update channel
	close(m.updates)

	m.logger.Debug("live monitor closed")
	return nil
}

func (m *liveMonitor) stopLocked() {
	close(m.stopChan)
	m.running = false

	if err := m.watcher.Stop(); err != nil && !errors.Is(err, watcher.ErrNotStarted) {
		m.logger.Warn("failed to stop watcher", "error", err)
	}
}

func (m *liveMonitor) pinned() bool {
	return m.config.SessionDir != ""
}

// resolve returns the session directory to follow.
func (m *liveMonitor) resolve() (string, error) {
	if m.pinned() {
		dir, err := m.discovery.DiscoverSession(m.config.SessionDir)
		if err != nil {
			return "", fmt.Errorf("failed to open session: %w", err)
		}
		return dir.Path, nil
	}

	latest, err := m.discovery.Latest()
	if err != nil {
		if errors.Is(err, discovery.ErrNoSessionsFound) {
			return "", ErrNoSessions
		}
		return "", fmt.Errorf("failed to discover sessions: %w", err)
	}
	return latest.Path, nil
}

// run handles watcher events and refresh ticks until stopped.
func (m *liveMonitor) run(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(m.config.RefreshInterval)
	defer ticker.Stop()

	events := m.watcher.Events()
	errs := m.watcher.Errors()

	for {
		select {
		case <-ctx.Done():
			return

		case <-stop:
			return

		case event, ok := <-events:
			if !ok {
				m.logger.Debug("watcher events channel closed")
				events = nil
				continue
			}

			m.logger.Debug("file change detected",
				"path", event.Path,
				"session", event.SessionID,
				"op", event.Op)
			m.refresh(ctx)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}

			m.logger.Warn("watcher error", "error", err)

		case <-ticker.C:
			m.refresh(ctx)
		}
	}
}

// refresh follows a newer session when unpinned, then publishes an update.
func (m *liveMonitor) refresh(ctx context.Context) {
	dir := m.currentDir()
	if !m.pinned() {
		if latest, err := m.discovery.Latest(); err == nil && latest.Path != dir {
			m.logger.Info("switching to newer session", "from", dir, "to", latest.Path)
			dir = latest.Path
			m.mu.Lock()
			m.dir = dir
			m.mu.Unlock()
		}
	}

	update, err := m.compute(ctx, dir)
	if err != nil {
		m.logger.Warn("failed to refresh session", "dir", dir, "error", err)
		return
	}
	m.publish(update)
}

func (m *liveMonitor) currentDir() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dir
}

// compute loads the session in dir and derives an update from it. The
// deltas are filled in by publish.
func (m *liveMonitor) compute(ctx context.Context, dir string) (Update, error) {
	s, err := m.reader.ReadSession(ctx, dir)
	if err != nil {
		return Update{}, err
	}

	sample, err := m.config.Meter.Measure(dir, m.config.BurnRateWindow)
	if err != nil {
		m.logger.Warn("failed to measure burn rate", "dir", dir, "error", err)
	}

	cost := s.Cost(m.config.Pricing)
	return Update{
		Timestamp:  m.config.Now(),
		SessionDir: dir,
		Session:    s,
		Summary:    s.Summarize(),
		Cost:       cost,
		BurnRate:   sample,
		Health:     m.config.Validator.Validate(s),
		Context:    m.contextUsage(s),
		Quota:      m.quotaUsage(s, cost),
	}, nil
}

// latestInteraction returns the most recently created interaction, or the
// last file when no interaction has timing.
func latestInteraction(s session.SessionData) (session.InteractionFile, bool) {
	if len(s.Files) == 0 {
		return session.InteractionFile{}, false
	}

	latest := s.Files[len(s.Files)-1]
	var latestAt time.Time
	for _, f := range s.Files {
		if f.TimeData == nil || f.TimeData.Created.IsZero() {
			continue
		}
		if f.TimeData.Created.After(latestAt) {
			latest, latestAt = f, f.TimeData.Created
		}
	}
	return latest, true
}

func (m *liveMonitor) contextUsage(s session.SessionData) *ContextUsage {
	f, ok := latestInteraction(s)
	if !ok {
		return nil
	}
	p := m.config.Pricing.Lookup(f.ModelID)
	if p == nil || p.ContextWindow <= 0 {
		return nil
	}

	tokens := f.Tokens.Total()
	return &ContextUsage{
		ModelID: f.ModelID,
		Tokens:  tokens,
		Window:  p.ContextWindow,
		Percent: float64(tokens) / float64(p.ContextWindow) * 100,
	}
}

func (m *liveMonitor) quotaUsage(s session.SessionData, cost decimal.Decimal) *QuotaUsage {
	f, ok := latestInteraction(s)
	if !ok {
		return nil
	}
	p := m.config.Pricing.Lookup(f.ModelID)
	if p == nil || !p.SessionQuota.IsPositive() {
		return nil
	}

	return &QuotaUsage{
		ModelID: f.ModelID,
		Used:    cost,
		Limit:   p.SessionQuota,
		Percent: cost.Div(p.SessionQuota).Mul(decimal.NewFromInt(100)).InexactFloat64(),
	}
}

// publish fills in the deltas of u and sends it to consumers.
func (m *liveMonitor) publish(u Update) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.publishLocked(u)
}

func (m *liveMonitor) publishLocked(u Update) {
	if m.last != nil && m.last.SessionDir == u.SessionDir {
		u.Delta = diff(*m.last, u)
	}
	if m.baseline == nil || m.baseline.SessionDir != u.SessionDir {
		base := u
		m.baseline = &base
	}
	u.Cumulative = diff(*m.baseline, u)
	m.last = &u

	// Send update (non-blocking)
	select {
	case m.updates <- u:
	default:
		m.logger.Warn("updates channel full, dropping update")
	}
}

func diff(from, to Update) DeltaStats {
	return DeltaStats{
		NewInteractions: to.Summary.InteractionCount - from.Summary.InteractionCount,
		Tokens:          to.Summary.TotalTokens.Sub(from.Summary.TotalTokens),
		Cost:            to.Cost.Sub(from.Cost),
	}
}
