// Package burnrate estimates how fast a live session consumes tokens.
//
// The estimate uses message file modification times as the event clock:
// files modified within the window are summed and divided by the minutes
// between the oldest of them and now. Every call rescans the directory, so
// a file touched or copied without new activity skews the result.
package burnrate

import (
	"errors"
	"fmt"
	"time"

	"github.com/0xmhha/session-monitor/pkg/discovery"
	"github.com/0xmhha/session-monitor/pkg/logger"
	"github.com/0xmhha/session-monitor/pkg/parser"
)

// DefaultWindow is the window used when callers have no preference.
const DefaultWindow = 5 * time.Minute

// Sample is one burn-rate measurement.
type Sample struct {
	// Files is the number of message files modified within the window.
	Files int `json:"files"`

	// Tokens is the total token count of those files.
	Tokens int64 `json:"tokens"`

	// Oldest is the modification time of the oldest in-window file.
	Oldest time.Time `json:"oldest,omitempty"`

	// Elapsed is the time between Oldest and the measurement.
	Elapsed time.Duration `json:"elapsed"`

	// TokensPerMinute is the estimated rate, 0 with fewer than two files.
	TokensPerMinute float64 `json:"tokens_per_minute"`
}

// Meter measures burn rates of session directories.
type Meter interface {
	// Rate returns tokens per minute over the trailing window.
	Rate(dir string, window time.Duration) (float64, error)

	// Measure returns the full sample behind Rate.
	Measure(dir string, window time.Duration) (Sample, error)
}

// Config contains meter configuration.
type Config struct {
	// Parser parses message files. Default: parser.New().
	Parser parser.Parser

	// Now returns the current time. Default: time.Now.
	Now func() time.Time

	// Logger receives scan diagnostics. Default: logger.Noop().
	Logger logger.Logger
}

type meter struct {
	files  discovery.Discoverer
	parser parser.Parser
	now    func() time.Time
	logger logger.Logger
}

// New creates a new Meter.
func New(cfg Config) Meter {
	if cfg.Parser == nil {
		cfg.Parser = parser.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Noop()
	}

	return &meter{
		files:  discovery.New(nil, cfg.Logger),
		parser: cfg.Parser,
		now:    cfg.Now,
		logger: cfg.Logger,
	}
}

// Rate implements Meter.Rate.
func (m *meter) Rate(dir string, window time.Duration) (float64, error) {
	s, err := m.Measure(dir, window)
	if err != nil {
		return 0, err
	}
	return s.TokensPerMinute, nil
}

// Measure implements Meter.Measure.
func (m *meter) Measure(dir string, window time.Duration) (Sample, error) {
	if window <= 0 {
		return Sample{}, fmt.Errorf("%w: %s", ErrInvalidWindow, window)
	}

	files, err := m.files.MessageFiles(dir)
	if err != nil {
		if errors.Is(err, discovery.ErrSessionNotFound) {
			return Sample{}, nil
		}
		return Sample{}, fmt.Errorf("failed to list message files: %w", err)
	}

	now := m.now()
	var s Sample
	for _, f := range files {
		if now.Sub(f.ModTime) > window {
			continue
		}

		s.Files++
		if s.Oldest.IsZero() || f.ModTime.Before(s.Oldest) {
			s.Oldest = f.ModTime
		}

		msg, err := m.parser.ParseFile(f.Path)
		if err != nil {
			// Counted as a sample, contributes no tokens.
			if !errors.Is(err, parser.ErrNotInteraction) {
				m.logger.Debug("unparseable file in burn-rate window", "path", f.Path, "error", err)
			}
			continue
		}
		s.Tokens += msg.Usage().Total()
	}

	if s.Files < 2 {
		return s, nil
	}

	s.Elapsed = now.Sub(s.Oldest)
	if minutes := s.Elapsed.Minutes(); minutes > 0 {
		s.TokensPerMinute = float64(s.Tokens) / minutes
	}
	return s, nil
}
