// Package config provides configuration management for session-monitor.
//
// Configuration is loaded from multiple sources with the following precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variables
// 3. Configuration file (YAML, or TOML for .toml files)
// 4. Default values (lowest priority)
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Messages: %s\n", cfg.Paths.MessagesDir)
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/0xmhha/session-monitor/pkg/aggregator"
	"github.com/0xmhha/session-monitor/pkg/logger"
)

// Output formats accepted by Display.DefaultFormat.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatCSV   = "csv"
)

// Config represents the complete application configuration.
//
// Invariants:
// - Paths.MessagesDir is set
// - Reports.WeekStartDay parses as a weekday
// - Health.CostThreshold is a positive decimal
// - Monitoring intervals are > 0
// - WorkerPoolSize must be > 0.
type Config struct {
	// Storage locations
	Paths PathsConfig `yaml:"paths" toml:"paths"`

	// Pricing settings
	Pricing PricingConfig `yaml:"pricing" toml:"pricing"`

	// Report settings
	Reports ReportsConfig `yaml:"reports" toml:"reports"`

	// Health check thresholds
	Health HealthConfig `yaml:"health" toml:"health"`

	// Live monitoring settings
	Monitoring MonitoringConfig `yaml:"monitoring" toml:"monitoring"`

	// Performance settings
	Performance PerformanceConfig `yaml:"performance" toml:"performance"`

	// Storage settings
	Storage StorageConfig `yaml:"storage" toml:"storage"`

	// Display settings
	Display DisplayConfig `yaml:"display" toml:"display"`

	// Logging settings
	Logging logger.Config `yaml:"logging" toml:"logging"`
}

// PathsConfig contains filesystem locations.
type PathsConfig struct {
	// Directory holding one subdirectory per session
	MessagesDir string `yaml:"messages_dir" toml:"messages_dir"`

	// Directory holding <session_id>.json title files
	SessionInfoDir string `yaml:"session_info_dir" toml:"session_info_dir"`

	// Default directory for exported reports
	ExportDir string `yaml:"export_dir" toml:"export_dir"`
}

// PricingConfig contains pricing settings.
type PricingConfig struct {
	// JSON or YAML file overlaid on the built-in table
	File string `yaml:"file" toml:"file"`
}

// ReportsConfig contains report settings.
type ReportsConfig struct {
	// First day of the week (monday..sunday, or 0..6 from Monday)
	WeekStartDay string `yaml:"week_start_day" toml:"week_start_day"`

	// IANA timezone for calendar buckets; "local" or empty for the system zone
	Timezone string `yaml:"timezone" toml:"timezone"`

	// Timeframe of model and project breakdowns (all, daily, weekly, monthly)
	DefaultTimeframe string `yaml:"default_timeframe" toml:"default_timeframe"`
}

// HealthConfig contains health check thresholds.
type HealthConfig struct {
	// Session cost above which a warning is raised
	CostThreshold string `yaml:"cost_threshold" toml:"cost_threshold"`

	// Interaction duration above which a warning is raised
	LongInteraction time.Duration `yaml:"long_interaction" toml:"long_interaction"`
}

// MonitoringConfig contains live monitoring settings.
type MonitoringConfig struct {
	// How often the live view is redrawn
	RefreshInterval time.Duration `yaml:"refresh_interval" toml:"refresh_interval"`

	// Trailing window of the burn rate
	BurnRateWindow time.Duration `yaml:"burn_rate_window" toml:"burn_rate_window"`

	// How long file events are coalesced before a refresh
	DebounceInterval time.Duration `yaml:"debounce_interval" toml:"debounce_interval"`
}

// PerformanceConfig contains performance tuning settings.
type PerformanceConfig struct {
	// Number of sessions loaded concurrently
	WorkerPoolSize int `yaml:"worker_pool_size" toml:"worker_pool_size"`

	// Retries for message files that fail to parse
	MaxRetries int `yaml:"max_retries" toml:"max_retries"`
}

// StorageConfig contains storage-related settings.
type StorageConfig struct {
	// Path to BoltDB snapshot database
	DBPath string `yaml:"db_path" toml:"db_path"`

	// Cache loaded sessions between runs
	CacheEnabled bool `yaml:"cache_enabled" toml:"cache_enabled"`
}

// DisplayConfig contains display-related settings.
type DisplayConfig struct {
	// Default output format (table, json, csv)
	DefaultFormat string `yaml:"default_format" toml:"default_format"`

	// Enable colored output
	ColorEnabled bool `yaml:"color_enabled" toml:"color_enabled"`
}

// WeekStart returns the parsed week start day.
func (r ReportsConfig) WeekStart() (aggregator.Weekday, error) {
	return aggregator.ParseWeekday(r.WeekStartDay)
}

// Location returns the report timezone.
func (r ReportsConfig) Location() (*time.Location, error) {
	switch strings.ToLower(strings.TrimSpace(r.Timezone)) {
	case "", "local":
		return time.Local, nil
	case "utc":
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidTimezone, r.Timezone, err)
	}
	return loc, nil
}

// Timeframe returns the parsed default timeframe.
func (r ReportsConfig) Timeframe() (aggregator.Timeframe, error) {
	return aggregator.ParseTimeframe(r.DefaultTimeframe)
}

// Threshold returns the parsed cost threshold.
func (h HealthConfig) Threshold() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(h.CostThreshold))
	if err != nil || !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidCostThreshold, h.CostThreshold)
	}
	return d, nil
}

// Validate checks if the configuration satisfies all invariants.
//
// Returns an error if any invariant is violated:
//   - No messages directory specified
//   - Unknown week start day, timezone or timeframe
//   - Invalid cost threshold
//   - Invalid time durations (must be > 0)
//   - Invalid worker pool size (must be > 0)
//   - Invalid display format
//   - Invalid log level or format
//
// Thread-safety: This method is read-only and thread-safe.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.MessagesDir) == "" {
		return ErrNoMessagesDir
	}

	// Validate report config
	if _, err := c.Reports.WeekStart(); err != nil {
		return err
	}
	if _, err := c.Reports.Location(); err != nil {
		return err
	}
	if _, err := c.Reports.Timeframe(); err != nil {
		return err
	}

	// Validate health config
	if _, err := c.Health.Threshold(); err != nil {
		return err
	}
	if c.Health.LongInteraction <= 0 {
		return ErrInvalidLongInteraction
	}

	// Validate monitoring config
	if c.Monitoring.RefreshInterval <= 0 {
		return ErrInvalidRefreshInterval
	}
	if c.Monitoring.BurnRateWindow <= 0 {
		return ErrInvalidBurnRateWindow
	}
	if c.Monitoring.DebounceInterval < 0 {
		return ErrInvalidDebounceInterval
	}

	// Validate performance config
	if c.Performance.WorkerPoolSize <= 0 {
		return ErrInvalidWorkerPoolSize
	}

	// Validate display config
	validFormats := map[string]bool{
		FormatTable: true,
		FormatJSON:  true,
		FormatCSV:   true,
	}
	if !validFormats[c.Display.DefaultFormat] {
		return ErrInvalidDisplayFormat
	}

	// Validate logging config
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLogLevel, err)
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return ErrInvalidLogFormat
	}

	return nil
}

// Default returns a configuration with sensible default values.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			MessagesDir:    defaultMessagesDir(),
			SessionInfoDir: defaultSessionInfoDir(),
			ExportDir:      "./exports",
		},
		Pricing: PricingConfig{
			File: defaultPricingFile(),
		},
		Reports: ReportsConfig{
			WeekStartDay:     "monday",
			Timezone:         "local",
			DefaultTimeframe: string(aggregator.TimeframeAll),
		},
		Health: HealthConfig{
			CostThreshold:   "50",
			LongInteraction: 5 * time.Minute,
		},
		Monitoring: MonitoringConfig{
			RefreshInterval:  5 * time.Second,
			BurnRateWindow:   5 * time.Minute,
			DebounceInterval: 250 * time.Millisecond,
		},
		Performance: PerformanceConfig{
			WorkerPoolSize: 4,
			MaxRetries:     2,
		},
		Storage: StorageConfig{
			DBPath:       defaultDBPath(),
			CacheEnabled: true,
		},
		Display: DisplayConfig{
			DefaultFormat: FormatTable,
			ColorEnabled:  true,
		},
		Logging: logger.Config{
			Level:  "warn",
			Output: "stderr",
			Format: "text",
		},
	}
}
