// Package display renders reports as tables, JSON or CSV.
//
// Every Formatter method writes one complete document to w. Table output
// is styled with lipgloss when color is enabled; JSON and CSV output is
// meant for export and never styled.
package display

import (
	"io"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/0xmhha/session-monitor/pkg/aggregator"
	"github.com/0xmhha/session-monitor/pkg/burnrate"
	"github.com/0xmhha/session-monitor/pkg/health"
	"github.com/0xmhha/session-monitor/pkg/session"
	"github.com/0xmhha/session-monitor/pkg/usage"
)

// Format represents an output format.
type Format string

const (
	// FormatTable displays reports as aligned tables.
	FormatTable Format = "table"

	// FormatJSON displays reports as JSON.
	FormatJSON Format = "json"

	// FormatCSV displays reports as CSV rows.
	FormatCSV Format = "csv"
)

// Formatter formats and displays reports.
type Formatter interface {
	// Daily formats the daily rollup.
	Daily(w io.Writer, days []aggregator.DailyUsage) error

	// Weekly formats the weekly rollup.
	Weekly(w io.Writer, weeks []aggregator.WeeklyUsage) error

	// Monthly formats the monthly rollup.
	Monthly(w io.Writer, months []aggregator.MonthlyUsage) error

	// Models formats a model breakdown.
	Models(w io.Writer, report *aggregator.ModelBreakdownReport) error

	// Projects formats a project breakdown.
	Projects(w io.Writer, report *aggregator.ProjectBreakdownReport) error

	// Session formats a single session.
	Session(w io.Writer, detail SessionDetail) error

	// Sessions formats a session list with its summary.
	Sessions(w io.Writer, rows []SessionRow, summary aggregator.SessionsSummary) error

	// Health formats health check results.
	Health(w io.Writer, results []health.Result) error

	// BurnRate formats a burn-rate sample.
	BurnRate(w io.Writer, sessionID string, sample burnrate.Sample) error
}

// Config contains formatter configuration.
type Config struct {
	// Format specifies the output format.
	// Default: FormatTable.
	Format Format

	// Color enables lipgloss styling of table output.
	Color bool

	// MaxWidth bounds table rows; titles are truncated to fit.
	// 0 means unbounded.
	MaxWidth int

	// Compact enables compact output (less whitespace).
	// Default: false.
	Compact bool
}

// SessionRow is the one-line view of a session.
type SessionRow struct {
	SessionID    string           `json:"session_id"`
	Title        string           `json:"title"`
	Project      string           `json:"project"`
	StartTime    time.Time        `json:"start_time"`
	DurationMs   int64            `json:"duration_ms"`
	HasDuration  bool             `json:"-"`
	Interactions int              `json:"interactions"`
	Tokens       usage.TokenUsage `json:"tokens"`
	Cost         decimal.Decimal  `json:"cost"`
	Models       []string         `json:"models"`
}

// ModelCost is the usage of one model within a session.
type ModelCost struct {
	ModelID      string           `json:"model_id"`
	Interactions int              `json:"interactions"`
	Tokens       usage.TokenUsage `json:"tokens"`
	Cost         decimal.Decimal  `json:"cost"`
	Priced       bool             `json:"priced"`
}

// SessionDetail is the full view of a session.
type SessionDetail struct {
	SessionRow

	EndTime               time.Time   `json:"end_time"`
	TotalProcessingTimeMs int64       `json:"total_processing_time_ms"`
	Breakdown             []ModelCost `json:"model_breakdown"`
}

// NewSessionRow builds the row of s under pricing.
func NewSessionRow(s session.SessionData, pricing usage.PricingTable) SessionRow {
	sum := s.Summarize()
	ms, ok := sum.DurationMs()

	return SessionRow{
		SessionID:    s.SessionID,
		Title:        s.SessionTitle,
		Project:      s.ProjectName,
		StartTime:    sum.StartTime,
		DurationMs:   ms,
		HasDuration:  ok,
		Interactions: sum.InteractionCount,
		Tokens:       sum.TotalTokens,
		Cost:         s.Cost(pricing),
		Models:       sum.ModelsUsed,
	}
}

// NewSessionRows builds the rows of sessions, keeping their order.
func NewSessionRows(sessions []session.SessionData, pricing usage.PricingTable) []SessionRow {
	rows := make([]SessionRow, len(sessions))
	for i, s := range sessions {
		rows[i] = NewSessionRow(s, pricing)
	}
	return rows
}

// NewSessionDetail builds the detail view of s under pricing. Models are
// ordered by cost, then tokens (both descending), then id.
func NewSessionDetail(s session.SessionData, pricing usage.PricingTable) SessionDetail {
	sum := s.Summarize()
	costs := s.ModelCosts(pricing)

	models := make([]ModelCost, 0, len(sum.ModelTokens))
	for id, tokens := range sum.ModelTokens {
		models = append(models, ModelCost{
			ModelID:      id,
			Interactions: sum.ModelInteractions[id],
			Tokens:       tokens,
			Cost:         costs[id],
			Priced:       pricing.Has(id),
		})
	}
	sort.Slice(models, func(i, j int) bool {
		a, b := models[i], models[j]
		if c := a.Cost.Cmp(b.Cost); c != 0 {
			return c > 0
		}
		if a.Tokens.Total() != b.Tokens.Total() {
			return a.Tokens.Total() > b.Tokens.Total()
		}
		return a.ModelID < b.ModelID
	})

	return SessionDetail{
		SessionRow:            NewSessionRow(s, pricing),
		EndTime:               sum.EndTime,
		TotalProcessingTimeMs: sum.TotalProcessingTimeMs,
		Breakdown:             models,
	}
}
