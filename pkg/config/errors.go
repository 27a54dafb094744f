package config

import (
	"errors"

	"github.com/0xmhha/session-monitor/pkg/aggregator"
)

// Common errors returned by the config package.
var (
	// ErrNoMessagesDir is returned when no message storage directory is set.
	ErrNoMessagesDir = errors.New("no messages directory specified")

	// ErrInvalidWeekStartDay is returned when the week start day is not a
	// weekday name or a number from 0 (Monday) to 6 (Sunday).
	ErrInvalidWeekStartDay = aggregator.ErrInvalidWeekStartDay

	// ErrInvalidTimeframe is returned when the default timeframe is unknown.
	ErrInvalidTimeframe = aggregator.ErrInvalidTimeframe

	// ErrInvalidTimezone is returned when the report timezone cannot be loaded.
	ErrInvalidTimezone = errors.New("invalid timezone")

	// ErrInvalidCostThreshold is returned when the health cost threshold is
	// not a positive decimal.
	ErrInvalidCostThreshold = errors.New("invalid cost threshold: must be a positive decimal")

	// ErrInvalidLongInteraction is returned when the long interaction
	// ceiling is <= 0.
	ErrInvalidLongInteraction = errors.New("invalid long interaction ceiling: must be > 0")

	// ErrInvalidRefreshInterval is returned when the refresh interval is <= 0.
	ErrInvalidRefreshInterval = errors.New("invalid refresh interval: must be > 0")

	// ErrInvalidBurnRateWindow is returned when the burn rate window is <= 0.
	ErrInvalidBurnRateWindow = errors.New("invalid burn rate window: must be > 0")

	// ErrInvalidDebounceInterval is returned when the debounce interval is < 0.
	ErrInvalidDebounceInterval = errors.New("invalid debounce interval: must be >= 0")

	// ErrInvalidWorkerPoolSize is returned when worker pool size is <= 0.
	ErrInvalidWorkerPoolSize = errors.New("invalid worker pool size: must be > 0")

	// ErrInvalidDisplayFormat is returned when the output format is not recognized.
	ErrInvalidDisplayFormat = errors.New("invalid display format: must be table, json, or csv")

	// ErrInvalidLogLevel is returned when log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn, or error")

	// ErrInvalidLogFormat is returned when log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrConfigNotFound is returned when config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML is returned when config file has invalid YAML syntax.
	ErrInvalidYAML = errors.New("invalid YAML syntax in config file")

	// ErrInvalidTOML is returned when config file has invalid TOML syntax.
	ErrInvalidTOML = errors.New("invalid TOML syntax in config file")
)
