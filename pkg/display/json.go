package display

import (
	"encoding/json"
	"io"

	"github.com/0xmhha/session-monitor/pkg/aggregator"
	"github.com/0xmhha/session-monitor/pkg/burnrate"
	"github.com/0xmhha/session-monitor/pkg/health"
)

// jsonFormatter formats output as JSON.
type jsonFormatter struct {
	config Config
}

// Daily implements Formatter.Daily.
func (f *jsonFormatter) Daily(w io.Writer, days []aggregator.DailyUsage) error {
	return f.encode(w, struct {
		Days []aggregator.DailyUsage `json:"days"`
	}{nonNil(days)})
}

// Weekly implements Formatter.Weekly.
func (f *jsonFormatter) Weekly(w io.Writer, weeks []aggregator.WeeklyUsage) error {
	return f.encode(w, struct {
		Weeks []aggregator.WeeklyUsage `json:"weeks"`
	}{nonNil(weeks)})
}

// Monthly implements Formatter.Monthly.
func (f *jsonFormatter) Monthly(w io.Writer, months []aggregator.MonthlyUsage) error {
	return f.encode(w, struct {
		Months []aggregator.MonthlyUsage `json:"months"`
	}{nonNil(months)})
}

// Models implements Formatter.Models.
func (f *jsonFormatter) Models(w io.Writer, report *aggregator.ModelBreakdownReport) error {
	return f.encode(w, report)
}

// Projects implements Formatter.Projects.
func (f *jsonFormatter) Projects(w io.Writer, report *aggregator.ProjectBreakdownReport) error {
	return f.encode(w, report)
}

// Session implements Formatter.Session.
func (f *jsonFormatter) Session(w io.Writer, detail SessionDetail) error {
	return f.encode(w, detail)
}

// Sessions implements Formatter.Sessions.
func (f *jsonFormatter) Sessions(w io.Writer, rows []SessionRow, summary aggregator.SessionsSummary) error {
	return f.encode(w, struct {
		Sessions []SessionRow               `json:"sessions"`
		Summary  aggregator.SessionsSummary `json:"summary"`
	}{nonNil(rows), summary})
}

// Health implements Formatter.Health.
func (f *jsonFormatter) Health(w io.Writer, results []health.Result) error {
	return f.encode(w, struct {
		Results []health.Result `json:"results"`
	}{nonNil(results)})
}

// BurnRate implements Formatter.BurnRate.
func (f *jsonFormatter) BurnRate(w io.Writer, sessionID string, sample burnrate.Sample) error {
	return f.encode(w, struct {
		SessionID string `json:"session_id"`
		burnrate.Sample
	}{sessionID, sample})
}

func (f *jsonFormatter) encode(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	if !f.config.Compact {
		encoder.SetIndent("", "  ")
	}

	return encoder.Encode(v)
}

// nonNil makes empty reports encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
