// Package aggregator provides the timeframe rollup engine and the
// breakdown reporters.
//
// It buckets sessions into daily, weekly and monthly usage, groups them by
// model or project with cost, and summarizes session sets. Every function
// is pure: it builds new values from the sessions it is given and holds no
// state between calls, so identical input always produces identical output.
//
// Example usage:
//
//	rollup, err := aggregator.Build(sessions, aggregator.Options{
//	    WeekStartDay: aggregator.Sunday,
//	    Pricing:      table,
//	})
//	if err != nil {
//	    return err
//	}
//	for _, week := range rollup.Weekly {
//	    fmt.Printf("%s: %d tokens\n", aggregator.FormatWeekRange(week.StartDate, week.EndDate),
//	        week.TotalTokens.Total())
//	}
package aggregator

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/0xmhha/session-monitor/pkg/session"
	"github.com/0xmhha/session-monitor/pkg/usage"
)

// UnknownProject groups sessions that recorded no project name.
const UnknownProject = "unknown"

// Weekday is a day of the week numbered from Monday (0) to Sunday (6).
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// String returns the lower-case day name.
func (d Weekday) String() string {
	if !d.Valid() {
		return "invalid"
	}
	return weekdayNames[d]
}

// Valid reports whether d is in Monday..Sunday.
func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

// WeekdayOf returns the Monday-based weekday of t.
func WeekdayOf(t time.Time) Weekday {
	return Weekday((int(t.Weekday()) + 6) % 7)
}

// Options configures the rollup engine.
type Options struct {
	// Location is the time zone days are cut in.
	// Default: time.Local.
	Location *time.Location

	// WeekStartDay is the first day of every weekly bucket.
	// Default: Monday.
	WeekStartDay Weekday

	// Pricing is used to cost every bucket. A nil table costs everything
	// at zero.
	Pricing usage.PricingTable
}

// Totals holds the aggregated values shared by every bucket type.
type Totals struct {
	// TotalSessions is the number of sessions in the bucket.
	TotalSessions int `json:"total_sessions"`

	// TotalInteractions is the number of interactions in the bucket.
	TotalInteractions int `json:"total_interactions"`

	// TotalTokens is the token sum over the bucket.
	TotalTokens usage.TokenUsage `json:"total_tokens"`

	// TotalCost is the cost of the bucket under Options.Pricing.
	TotalCost decimal.Decimal `json:"total_cost"`

	// ModelsUsed is the sorted set of model ids seen in the bucket.
	ModelsUsed []string `json:"models_used"`
}

// DailyUsage is the usage of every session that started on Date.
type DailyUsage struct {
	// Date is midnight of the day in Options.Location.
	Date time.Time `json:"date"`

	Sessions []session.SessionData `json:"-"`

	Totals
}

// WeeklyUsage is the usage of a 7-day window beginning on the configured
// week start day.
type WeeklyUsage struct {
	// Year and Week are the ISO week of the window midpoint (StartDate + 3
	// days), so they match the week most of its days fall in.
	Year int `json:"year"`
	Week int `json:"week"`

	// StartDate and EndDate bound the window inclusively.
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	// Days are the non-empty days of the window in ascending order.
	Days []DailyUsage `json:"-"`

	Sessions []session.SessionData `json:"-"`

	Totals
}

// MonthlyUsage is the usage of every session that started in a calendar
// month.
type MonthlyUsage struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`

	Sessions []session.SessionData `json:"-"`

	Totals
}

// Rollup holds the three groupings of one session set.
type Rollup struct {
	Daily   []DailyUsage
	Weekly  []WeeklyUsage
	Monthly []MonthlyUsage

	// TotalSessions is the number of input sessions.
	TotalSessions int

	// SkippedSessions is the number of sessions without a start time,
	// which appear in no bucket.
	SkippedSessions int
}

// Timeframe restricts a breakdown to the current period of a granularity.
type Timeframe string

const (
	// TimeframeAll applies no restriction beyond the explicit date filter.
	TimeframeAll Timeframe = "all"

	// TimeframeDaily keeps sessions that started today.
	TimeframeDaily Timeframe = "daily"

	// TimeframeWeekly keeps sessions that started in the current week.
	TimeframeWeekly Timeframe = "weekly"

	// TimeframeMonthly keeps sessions that started in the current month.
	TimeframeMonthly Timeframe = "monthly"
)

// BreakdownOptions configures the model and project breakdowns.
type BreakdownOptions struct {
	// Timeframe restricts the sessions to the current period.
	// Default: TimeframeAll.
	Timeframe Timeframe

	// StartDate and EndDate bound the session start date inclusively.
	// A nil bound is unbounded on that side.
	StartDate *time.Time
	EndDate   *time.Time

	// Now anchors the current period.
	// Default: time.Now().
	Now time.Time

	// Location is the time zone dates are compared in.
	// Default: time.Local.
	Location *time.Location

	// WeekStartDay anchors TimeframeWeekly.
	// Default: Monday.
	WeekStartDay Weekday

	Pricing usage.PricingTable
}

// UsageStats is the aggregate of one breakdown group.
type UsageStats struct {
	// Sessions is the number of sessions that contributed to the group.
	Sessions int `json:"sessions"`

	// Interactions is the number of interactions counted in the group.
	Interactions int `json:"interactions"`

	Tokens usage.TokenUsage `json:"tokens"`

	Cost decimal.Decimal `json:"cost"`

	// FirstSeen and LastSeen are the earliest and latest session start
	// times. Zero when no contributing session had a start time.
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// ModelUsageStats is the usage of one model.
type ModelUsageStats struct {
	ModelID string `json:"model_id"`

	UsageStats
}

// ProjectUsageStats is the usage of one project.
type ProjectUsageStats struct {
	ProjectName string `json:"project_name"`

	// ModelsUsed is the sorted set of models used by the project.
	ModelsUsed []string `json:"models_used"`

	UsageStats
}

// ReportTotals holds the grand totals of a breakdown's filtered session
// set. Sessions using several models are counted once here.
type ReportTotals struct {
	Sessions     int              `json:"sessions"`
	Interactions int              `json:"interactions"`
	Tokens       usage.TokenUsage `json:"tokens"`
	Cost         decimal.Decimal  `json:"cost"`
}

// ModelBreakdownReport is the per-model view of a session set.
type ModelBreakdownReport struct {
	Timeframe Timeframe  `json:"timeframe"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	// Models is ordered by cost, then tokens (both descending), then id.
	Models []ModelUsageStats `json:"models"`

	Totals ReportTotals `json:"totals"`

	// UnpricedModels lists used models without a pricing entry.
	UnpricedModels []string `json:"unpriced_models"`
}

// ProjectBreakdownReport is the per-project view of a session set.
type ProjectBreakdownReport struct {
	Timeframe Timeframe  `json:"timeframe"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	// Projects is ordered by cost, then tokens (both descending), then name.
	Projects []ProjectUsageStats `json:"projects"`

	Totals ReportTotals `json:"totals"`

	UnpricedModels []string `json:"unpriced_models"`
}

// SessionsSummary describes a set of sessions as a whole.
type SessionsSummary struct {
	TotalSessions     int              `json:"total_sessions"`
	TotalInteractions int              `json:"total_interactions"`
	TotalTokens       usage.TokenUsage `json:"total_tokens"`
	TotalCost         decimal.Decimal  `json:"total_cost"`

	// ModelsUsed is the sorted set of models across all sessions.
	ModelsUsed []string `json:"models_used"`

	// UnpricedModels lists used models without a pricing entry.
	UnpricedModels []string `json:"unpriced_models"`

	// EarliestStart and LatestEnd bound the set. Zero when unknown.
	EarliestStart time.Time `json:"earliest_start"`
	LatestEnd     time.Time `json:"latest_end"`

	// Statistics are the per-session distributions.
	Statistics Statistics `json:"statistics"`
}

// Statistics contains per-session distribution values.
type Statistics struct {
	// AvgTokens is the average total tokens per session.
	AvgTokens float64 `json:"avg_tokens"`

	// AvgInteractions is the average interaction count per session.
	AvgInteractions float64 `json:"avg_interactions"`

	// AvgCost is the average cost per session.
	AvgCost decimal.Decimal `json:"avg_cost"`

	// AvgDurationMs is the average duration of sessions with known bounds.
	AvgDurationMs int64 `json:"avg_duration_ms"`

	// MinTokens and MaxTokens bound the per-session token totals.
	MinTokens int64 `json:"min_tokens"`
	MaxTokens int64 `json:"max_tokens"`

	// P50Tokens is the median per-session token total.
	P50Tokens int64 `json:"p50_tokens"`

	// P95Tokens is the 95th percentile per-session token total.
	P95Tokens int64 `json:"p95_tokens"`
}
