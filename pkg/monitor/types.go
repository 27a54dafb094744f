// Package monitor provides the live session dashboard.
//
// A LiveMonitor follows one session directory, by default the most
// recently active session under the messages directory. Every file event
// and every refresh tick reloads the session, recomputes its summary,
// burn rate and health, and publishes an Update. When no session is pinned
// the monitor switches to a newer session as soon as one appears.
package monitor

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/0xmhha/session-monitor/pkg/burnrate"
	"github.com/0xmhha/session-monitor/pkg/health"
	"github.com/0xmhha/session-monitor/pkg/session"
	"github.com/0xmhha/session-monitor/pkg/usage"
)

// Config holds the configuration for the live monitor.
type Config struct {
	// MessagesDir is watched for new sessions when SessionDir is empty.
	MessagesDir string

	// SessionDir pins the monitor to one session directory.
	SessionDir string

	// RefreshInterval is the interval between periodic updates.
	// Default: 5s.
	RefreshInterval time.Duration

	// BurnRateWindow is the trailing window of the burn rate.
	// Default: burnrate.DefaultWindow.
	BurnRateWindow time.Duration

	// Pricing costs the session.
	Pricing usage.PricingTable

	// Meter measures burn rates. Default: burnrate.New.
	Meter burnrate.Meter

	// Validator checks session health. Default: health.New with Pricing.
	Validator health.Validator

	// Now returns the current time. Default: time.Now.
	Now func() time.Time
}

// LiveMonitor provides real-time session monitoring.
type LiveMonitor interface {
	// Start resolves the session, publishes the first update and begins
	// watching. It returns once monitoring runs in the background; the
	// monitor stops when ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop stops the monitor gracefully.
	Stop() error

	// Updates returns the channel of published updates. Updates are
	// dropped when the consumer falls behind. The channel is closed by
	// Close.
	Updates() <-chan Update

	// Latest returns the most recent update.
	Latest() (Update, bool)

	// Close stops the monitor and closes the update channel.
	Close() error
}

// Update is one snapshot of the followed session.
type Update struct {
	// Timestamp is when the update was computed.
	Timestamp time.Time `json:"timestamp"`

	// SessionDir is the directory of the followed session.
	SessionDir string `json:"session_dir"`

	// Session is the loaded session.
	Session session.SessionData `json:"-"`

	// Summary holds the session's derived values.
	Summary session.Summary `json:"-"`

	// Cost is the session cost under Config.Pricing.
	Cost decimal.Decimal `json:"cost"`

	// BurnRate is the burn-rate sample of the trailing window.
	BurnRate burnrate.Sample `json:"burn_rate"`

	// Health is the health check result of the session.
	Health health.Result `json:"health"`

	// Delta is the change since the previous update.
	Delta DeltaStats `json:"delta"`

	// Cumulative is the change since the session was first observed.
	Cumulative DeltaStats `json:"cumulative"`

	// Context is the context-window fill of the latest interaction, nil
	// when its model has no known context window.
	Context *ContextUsage `json:"context,omitempty"`

	// Quota is the spend against the session quota, nil when the model
	// has no quota configured.
	Quota *QuotaUsage `json:"quota,omitempty"`
}

// DeltaStats represents changes between two updates.
type DeltaStats struct {
	// NewInteractions is the number of interactions added.
	NewInteractions int `json:"new_interactions"`

	// Tokens is the token usage added.
	Tokens usage.TokenUsage `json:"tokens"`

	// Cost is the cost added.
	Cost decimal.Decimal `json:"cost"`
}

// ContextUsage is the fill of a model's context window.
type ContextUsage struct {
	ModelID string  `json:"model_id"`
	Tokens  int64   `json:"tokens"`
	Window  int64   `json:"window"`
	Percent float64 `json:"percent"`
}

// QuotaUsage is the spend of a session against its budget.
type QuotaUsage struct {
	ModelID string          `json:"model_id"`
	Used    decimal.Decimal `json:"used"`
	Limit   decimal.Decimal `json:"limit"`
	Percent float64         `json:"percent"`
}
