package aggregator

import "errors"

// Common errors returned for invalid caller arguments.
var (
	// ErrInvalidWeekStartDay is returned when a week start day is outside
	// Monday..Sunday.
	ErrInvalidWeekStartDay = errors.New("invalid week start day: must be 0 (monday) to 6 (sunday)")

	// ErrInvalidDateRange is returned when the end date precedes the start
	// date.
	ErrInvalidDateRange = errors.New("invalid date range: end date before start date")

	// ErrInvalidTimeframe is returned for an unknown timeframe.
	ErrInvalidTimeframe = errors.New("invalid timeframe: must be all, daily, weekly or monthly")
)
