package display

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/0xmhha/session-monitor/pkg/aggregator"
	"github.com/0xmhha/session-monitor/pkg/burnrate"
	"github.com/0xmhha/session-monitor/pkg/health"
	"github.com/0xmhha/session-monitor/pkg/usage"
)

// csvFormatter formats output as CSV with a header row. Costs are exact
// decimals and timestamps are RFC 3339.
type csvFormatter struct {
	config Config
}

var tokenColumns = []string{"input_tokens", "output_tokens", "cache_write_tokens", "cache_read_tokens", "total_tokens"}

// Daily implements Formatter.Daily.
func (f *csvFormatter) Daily(w io.Writer, days []aggregator.DailyUsage) error {
	records := [][]string{header("date", "sessions", "interactions", "tokens", "cost", "models")}
	for _, d := range days {
		records = append(records, append([]string{d.Date.Format(dateLayout)}, totalsRecord(d.Totals)...))
	}
	return writeCSV(w, records)
}

// Weekly implements Formatter.Weekly.
func (f *csvFormatter) Weekly(w io.Writer, weeks []aggregator.WeeklyUsage) error {
	records := [][]string{header("year", "week", "start_date", "end_date", "sessions", "interactions", "tokens", "cost", "models")}
	for _, wk := range weeks {
		records = append(records, append([]string{
			strconv.Itoa(wk.Year),
			strconv.Itoa(wk.Week),
			wk.StartDate.Format(dateLayout),
			wk.EndDate.Format(dateLayout),
		}, totalsRecord(wk.Totals)...))
	}
	return writeCSV(w, records)
}

// Monthly implements Formatter.Monthly.
func (f *csvFormatter) Monthly(w io.Writer, months []aggregator.MonthlyUsage) error {
	records := [][]string{header("year", "month", "sessions", "interactions", "tokens", "cost", "models")}
	for _, m := range months {
		records = append(records, append([]string{
			strconv.Itoa(m.Year),
			fmt.Sprintf("%02d", int(m.Month)),
		}, totalsRecord(m.Totals)...))
	}
	return writeCSV(w, records)
}

// Models implements Formatter.Models.
func (f *csvFormatter) Models(w io.Writer, report *aggregator.ModelBreakdownReport) error {
	records := [][]string{header("model_id", "sessions", "interactions", "tokens", "cost", "first_seen", "last_seen")}
	for _, m := range report.Models {
		records = append(records, append([]string{m.ModelID}, statsRecord(m.UsageStats)...))
	}
	return writeCSV(w, records)
}

// Projects implements Formatter.Projects.
func (f *csvFormatter) Projects(w io.Writer, report *aggregator.ProjectBreakdownReport) error {
	records := [][]string{header("project", "sessions", "interactions", "tokens", "cost", "first_seen", "last_seen", "models")}
	for _, p := range report.Projects {
		row := append([]string{p.ProjectName}, statsRecord(p.UsageStats)...)
		records = append(records, append(row, strings.Join(p.ModelsUsed, ";")))
	}
	return writeCSV(w, records)
}

// Session implements Formatter.Session. One row per model.
func (f *csvFormatter) Session(w io.Writer, d SessionDetail) error {
	records := [][]string{header("session_id", "title", "project", "model_id", "interactions", "tokens", "cost")}
	for _, m := range d.Breakdown {
		row := []string{d.SessionID, d.Title, d.Project, m.ModelID, strconv.Itoa(m.Interactions)}
		row = append(row, tokensRecord(m.Tokens)...)
		records = append(records, append(row, m.Cost.String()))
	}
	return writeCSV(w, records)
}

// Sessions implements Formatter.Sessions.
func (f *csvFormatter) Sessions(w io.Writer, rows []SessionRow, _ aggregator.SessionsSummary) error {
	records := [][]string{header("session_id", "title", "project", "start_time", "duration_ms", "interactions", "tokens", "cost", "models")}
	for _, r := range rows {
		duration := ""
		if r.HasDuration {
			duration = strconv.FormatInt(r.DurationMs, 10)
		}
		row := []string{r.SessionID, r.Title, r.Project, timeRecord(r.StartTime), duration, strconv.Itoa(r.Interactions)}
		row = append(row, tokensRecord(r.Tokens)...)
		records = append(records, append(row, r.Cost.String(), strings.Join(r.Models, ";")))
	}
	return writeCSV(w, records)
}

// Health implements Formatter.Health. One row per finding; healthy
// sessions without findings get a single empty row.
func (f *csvFormatter) Health(w io.Writer, results []health.Result) error {
	records := [][]string{{"session_id", "healthy", "severity", "message"}}
	for _, r := range results {
		healthy := strconv.FormatBool(r.Healthy)
		for _, issue := range r.Issues {
			records = append(records, []string{r.SessionID, healthy, "issue", issue})
		}
		for _, warning := range r.Warnings {
			records = append(records, []string{r.SessionID, healthy, "warning", warning})
		}
		if len(r.Issues) == 0 && len(r.Warnings) == 0 {
			records = append(records, []string{r.SessionID, healthy, "", ""})
		}
	}
	return writeCSV(w, records)
}

// BurnRate implements Formatter.BurnRate.
func (f *csvFormatter) BurnRate(w io.Writer, sessionID string, s burnrate.Sample) error {
	return writeCSV(w, [][]string{
		{"session_id", "files", "tokens", "elapsed_ms", "tokens_per_minute"},
		{
			sessionID,
			strconv.Itoa(s.Files),
			strconv.FormatInt(s.Tokens, 10),
			strconv.FormatInt(s.Elapsed.Milliseconds(), 10),
			strconv.FormatFloat(s.TokensPerMinute, 'f', 2, 64),
		},
	})
}

// header expands the "tokens" placeholder into the token columns.
func header(columns ...string) []string {
	out := make([]string, 0, len(columns)+len(tokenColumns))
	for _, c := range columns {
		if c == "tokens" {
			out = append(out, tokenColumns...)
			continue
		}
		out = append(out, c)
	}
	return out
}

func tokensRecord(t usage.TokenUsage) []string {
	return []string{
		strconv.FormatInt(t.Input, 10),
		strconv.FormatInt(t.Output, 10),
		strconv.FormatInt(t.CacheWrite, 10),
		strconv.FormatInt(t.CacheRead, 10),
		strconv.FormatInt(t.Total(), 10),
	}
}

func totalsRecord(t aggregator.Totals) []string {
	row := []string{strconv.Itoa(t.TotalSessions), strconv.Itoa(t.TotalInteractions)}
	row = append(row, tokensRecord(t.TotalTokens)...)
	return append(row, t.TotalCost.String(), strings.Join(t.ModelsUsed, ";"))
}

func statsRecord(s aggregator.UsageStats) []string {
	row := []string{strconv.Itoa(s.Sessions), strconv.Itoa(s.Interactions)}
	row = append(row, tokensRecord(s.Tokens)...)
	return append(row, s.Cost.String(), timeRecord(s.FirstSeen), timeRecord(s.LastSeen))
}

func timeRecord(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func writeCSV(w io.Writer, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}
