package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/0xmhha/session-monitor/pkg/discovery"
)

// Environment variables read by the loader.
const (
	EnvConfig      = "SESSION_MONITOR_CONFIG"
	EnvMessagesDir = "SESSION_MONITOR_MESSAGES_DIR"
	EnvDB          = "SESSION_MONITOR_DB"
	EnvLogLevel    = "SESSION_MONITOR_LOG_LEVEL"
	EnvWeekStart   = "SESSION_MONITOR_WEEK_START"
	EnvTimezone    = "SESSION_MONITOR_TIMEZONE"
	EnvPricingFile = "SESSION_MONITOR_PRICING_FILE"
	EnvWorkers     = "SESSION_MONITOR_WORKERS"
)

// Loader provides methods for loading configuration from various sources.
type Loader interface {
	// Load loads configuration with the following precedence:
	// 1. Environment variables
	// 2. Configuration file
	// 3. Default values
	//
	// Returns the merged configuration or an error if validation fails.
	Load() (*Config, error)

	// LoadFromFile loads a specific file over the default values.
	// Environment variables are not applied and nothing is validated.
	LoadFromFile(path string) (*Config, error)

	// Path returns the config file Load reads, or "" if there is none.
	Path() string
}

// loader implements the Loader interface.
type loader struct {
	configPath string
}

// NewLoader creates a new configuration loader.
//
// If configPath is empty, SESSION_MONITOR_CONFIG is used, then the first
// existing file of:
// 1. ./session-monitor.yaml, ./session-monitor.toml (current directory)
// 2. ~/.config/session-monitor/config.yaml, config.toml.
func NewLoader(configPath string) Loader {
	if configPath == "" {
		configPath = os.Getenv(EnvConfig)
	}
	return &loader{
		configPath: configPath,
	}
}

// Load implements Loader.Load.
func (l *loader) Load() (*Config, error) {
	cfg := Default()

	if configPath := l.Path(); configPath != "" {
		fileCfg, err := l.LoadFromFile(configPath)
		if err != nil {
			// If file is specified but can't be loaded, return error
			if l.configPath != "" {
				return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
			// Otherwise, just use defaults
		} else {
			cfg = fileCfg
		}
	}

	// Apply environment variable overrides
	cfg = applyEnvVars(cfg)

	// Validate final configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile implements Loader.LoadFromFile.
//
// The file is decoded on top of Default(), so keys absent from the file
// keep their default values.
func (l *loader) LoadFromFile(path string) (*Config, error) {
	path = discovery.ExpandHome(path)

	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if isTOML(path) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTOML, err)
		}
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return cfg, nil
}

// Path implements Loader.Path.
func (l *loader) Path() string {
	if l.configPath != "" {
		return l.configPath
	}
	return findConfigFile()
}

// SearchPaths returns the config file locations in order of precedence.
func SearchPaths() []string {
	return []string{
		"./session-monitor.yaml",
		"./session-monitor.toml",
		DefaultConfigPath(),
		filepath.Join(configDir(), "config.toml"),
	}
}

// findConfigFile searches for a config file in standard locations.
//
// Returns empty string if no config file is found.
func findConfigFile() string {
	for _, path := range SearchPaths() {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// applyEnvVars applies environment variable overrides to the configuration.
//
// Supported environment variables:
//   - SESSION_MONITOR_MESSAGES_DIR: Message storage directory
//   - SESSION_MONITOR_DB: Path to snapshot database file
//   - SESSION_MONITOR_LOG_LEVEL: Log level
//   - SESSION_MONITOR_WEEK_START: Week start day
//   - SESSION_MONITOR_TIMEZONE: Report timezone
//   - SESSION_MONITOR_PRICING_FILE: Pricing overlay file
//   - SESSION_MONITOR_WORKERS: Worker pool size
func applyEnvVars(cfg *Config) *Config {
	result := *cfg

	if dir := os.Getenv(EnvMessagesDir); dir != "" {
		result.Paths.MessagesDir = strings.TrimSpace(dir)
	}

	if dbPath := os.Getenv(EnvDB); dbPath != "" {
		result.Storage.DBPath = dbPath
	}

	if logLevel := os.Getenv(EnvLogLevel); logLevel != "" {
		result.Logging.Level = strings.ToLower(logLevel)
	}

	if weekStart := os.Getenv(EnvWeekStart); weekStart != "" {
		result.Reports.WeekStartDay = weekStart
	}

	if tz := os.Getenv(EnvTimezone); tz != "" {
		result.Reports.Timezone = tz
	}

	if pricingFile := os.Getenv(EnvPricingFile); pricingFile != "" {
		result.Pricing.File = pricingFile
	}

	// Invalid numbers are ignored; Validate reports the file value.
	if workers := os.Getenv(EnvWorkers); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil {
			result.Performance.WorkerPoolSize = n
		}
	}

	return &result
}

// Load is a convenience function that creates a loader and loads configuration.
//
// Equivalent to:
//
//	loader := NewLoader("")
//	return loader.Load()
func Load() (*Config, error) {
	return NewLoader("").Load()
}

// LoadFromFile is a convenience function that loads configuration from a file.
//
// Equivalent to:
//
//	loader := NewLoader(path)
//	return loader.Load()
func LoadFromFile(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// Save writes the configuration to a YAML file, or TOML when path ends in
// .toml.
//
// Creates parent directories if they don't exist.
// File is created with 0600 permissions (read/write for owner only).
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	path = discovery.ExpandHome(path)

	// Create parent directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := Marshal(cfg, isTOML(path))
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Marshal encodes the configuration as YAML, or TOML when asTOML is set.
func Marshal(cfg *Config, asTOML bool) ([]byte, error) {
	if asTOML {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, fmt.Errorf("failed to marshal config: %w", err)
		}
		return buf.Bytes(), nil
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
