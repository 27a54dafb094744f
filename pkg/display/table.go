package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/0xmhha/session-monitor/pkg/aggregator"
	"github.com/0xmhha/session-monitor/pkg/burnrate"
	"github.com/0xmhha/session-monitor/pkg/health"
	"github.com/0xmhha/session-monitor/pkg/usage"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// tableFormatter formats output as tables.
type tableFormatter struct {
	config Config

	titleStyle  lipgloss.Style
	headerStyle lipgloss.Style
	totalStyle  lipgloss.Style
	warnStyle   lipgloss.Style
	errorStyle  lipgloss.Style
	okStyle     lipgloss.Style
	plainStyle  lipgloss.Style
}

func newTableFormatter(cfg Config) *tableFormatter {
	return &tableFormatter{
		config:      cfg,
		titleStyle:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
		headerStyle: lipgloss.NewStyle().Bold(true),
		totalStyle:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981")),
		warnStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")),
		errorStyle:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444")),
		okStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")),
		plainStyle:  lipgloss.NewStyle(),
	}
}

// table is a rectangular block of cells with an optional totals row.
type table struct {
	header []string
	rows   [][]string
	footer []string

	// right marks right-aligned (numeric) columns.
	right []bool

	// flex is the column shrunk to fit MaxWidth, -1 for none.
	flex int
}

// Daily implements Formatter.Daily.
func (f *tableFormatter) Daily(w io.Writer, days []aggregator.DailyUsage) error {
	if err := f.writeHeader(w, "Daily Usage"); err != nil {
		return err
	}

	t := table{
		header: []string{"Date", "Sessions", "Interactions", "Input", "Output", "Cache W", "Cache R", "Total", "Cost", "Models"},
		right:  []bool{false, true, true, true, true, true, true, true, true, false},
		flex:   9,
	}

	var total aggregator.Totals
	for _, d := range days {
		t.rows = append(t.rows, append([]string{d.Date.Format(dateLayout)}, totalsCells(d.Totals)...))
		total = addTotals(total, d.Totals)
	}
	if len(days) > 0 {
		t.footer = append([]string{"Total"}, totalsCells(total)...)
	}

	return f.writeTable(w, t)
}

// Weekly implements Formatter.Weekly.
func (f *tableFormatter) Weekly(w io.Writer, weeks []aggregator.WeeklyUsage) error {
	if err := f.writeHeader(w, "Weekly Usage"); err != nil {
		return err
	}

	t := table{
		header: []string{"Week", "Range", "Days", "Sessions", "Interactions", "Total Tokens", "Cost", "Models"},
		right:  []bool{false, false, true, true, true, true, true, false},
		flex:   7,
	}

	var total aggregator.Totals
	for _, wk := range weeks {
		t.rows = append(t.rows, []string{
			fmt.Sprintf("%d-W%02d", wk.Year, wk.Week),
			aggregator.FormatWeekRange(wk.StartDate, wk.EndDate),
			formatNumber(len(wk.Days)),
			formatNumber(wk.TotalSessions),
			formatNumber(wk.TotalInteractions),
			formatNumber(wk.TotalTokens.Total()),
			formatCost(wk.TotalCost),
			strings.Join(wk.ModelsUsed, ", "),
		})
		total = addTotals(total, wk.Totals)
	}
	if len(weeks) > 0 {
		t.footer = []string{
			"Total", "", "",
			formatNumber(total.TotalSessions),
			formatNumber(total.TotalInteractions),
			formatNumber(total.TotalTokens.Total()),
			formatCost(total.TotalCost),
			"",
		}
	}

	return f.writeTable(w, t)
}

// Monthly implements Formatter.Monthly.
func (f *tableFormatter) Monthly(w io.Writer, months []aggregator.MonthlyUsage) error {
	if err := f.writeHeader(w, "Monthly Usage"); err != nil {
		return err
	}

	t := table{
		header: []string{"Month", "Sessions", "Interactions", "Input", "Output", "Cache W", "Cache R", "Total", "Cost", "Models"},
		right:  []bool{false, true, true, true, true, true, true, true, true, false},
		flex:   9,
	}

	var total aggregator.Totals
	for _, m := range months {
		t.rows = append(t.rows, append([]string{fmt.Sprintf("%s %d", m.Month, m.Year)}, totalsCells(m.Totals)...))
		total = addTotals(total, m.Totals)
	}
	if len(months) > 0 {
		t.footer = append([]string{"Total"}, totalsCells(total)...)
	}

	return f.writeTable(w, t)
}

// Models implements Formatter.Models.
func (f *tableFormatter) Models(w io.Writer, report *aggregator.ModelBreakdownReport) error {
	title := fmt.Sprintf("Model Usage (%s, %s)", report.Timeframe, aggregator.FormatDateRange(report.StartDate, report.EndDate))
	if err := f.writeHeader(w, title); err != nil {
		return err
	}

	t := table{
		header: []string{"Model", "Sessions", "Interactions", "Input", "Output", "Cache W", "Cache R", "Total", "Cost", "First Seen", "Last Seen"},
		right:  []bool{false, true, true, true, true, true, true, true, true, false, false},
		flex:   0,
	}
	for _, m := range report.Models {
		t.rows = append(t.rows, append([]string{m.ModelID}, statsCells(m.UsageStats)...))
	}
	if len(report.Models) > 0 {
		t.footer = append([]string{"Total"}, reportTotalsCells(report.Totals)...)
	}

	if err := f.writeTable(w, t); err != nil {
		return err
	}
	return f.writeUnpriced(w, report.UnpricedModels)
}

// Projects implements Formatter.Projects.
func (f *tableFormatter) Projects(w io.Writer, report *aggregator.ProjectBreakdownReport) error {
	title := fmt.Sprintf("Project Usage (%s, %s)", report.Timeframe, aggregator.FormatDateRange(report.StartDate, report.EndDate))
	if err := f.writeHeader(w, title); err != nil {
		return err
	}

	t := table{
		header: []string{"Project", "Sessions", "Interactions", "Input", "Output", "Cache W", "Cache R", "Total", "Cost", "First Seen", "Last Seen", "Models"},
		right:  []bool{false, true, true, true, true, true, true, true, true, false, false, false},
		flex:   11,
	}
	for _, p := range report.Projects {
		row := append([]string{p.ProjectName}, statsCells(p.UsageStats)...)
		t.rows = append(t.rows, append(row, strings.Join(p.ModelsUsed, ", ")))
	}
	if len(report.Projects) > 0 {
		t.footer = append(append([]string{"Total"}, reportTotalsCells(report.Totals)...), "")
	}

	if err := f.writeTable(w, t); err != nil {
		return err
	}
	return f.writeUnpriced(w, report.UnpricedModels)
}

// Session implements Formatter.Session.
func (f *tableFormatter) Session(w io.Writer, d SessionDetail) error {
	if err := f.writeHeader(w, "Session "+d.SessionID); err != nil {
		return err
	}

	kv := table{
		header: []string{"Metric", "Value"},
		flex:   1,
		rows: [][]string{
			{"Title", orDash(d.Title)},
			{"Project", orDash(d.Project)},
			{"Started", formatTime(d.StartTime, dateTimeLayout)},
			{"Ended", formatTime(d.EndTime, dateTimeLayout)},
			{"Duration", FormatDuration(d.DurationMs, d.HasDuration)},
			{"Processing Time", FormatDuration(d.TotalProcessingTimeMs, d.TotalProcessingTimeMs > 0)},
			{"Interactions", formatNumber(d.Interactions)},
			{"Input Tokens", formatNumber(d.Tokens.Input)},
			{"Output Tokens", formatNumber(d.Tokens.Output)},
			{"Cache Write Tokens", formatNumber(d.Tokens.CacheWrite)},
			{"Cache Read Tokens", formatNumber(d.Tokens.CacheRead)},
			{"Total Tokens", formatNumber(d.Tokens.Total())},
			{"Cost", formatCost(d.Cost)},
		},
	}
	if err := f.writeTable(w, kv); err != nil {
		return err
	}

	t := table{
		header: []string{"Model", "Interactions", "Input", "Output", "Cache W", "Cache R", "Total", "Cost"},
		right:  []bool{false, true, true, true, true, true, true, true},
		flex:   0,
	}
	var unpriced []string
	for _, m := range d.Breakdown {
		t.rows = append(t.rows, []string{
			m.ModelID,
			formatNumber(m.Interactions),
			formatNumber(m.Tokens.Input),
			formatNumber(m.Tokens.Output),
			formatNumber(m.Tokens.CacheWrite),
			formatNumber(m.Tokens.CacheRead),
			formatNumber(m.Tokens.Total()),
			formatCost(m.Cost),
		})
		if !m.Priced && m.ModelID != usage.UnknownModel {
			unpriced = append(unpriced, m.ModelID)
		}
	}
	if err := f.writeTable(w, t); err != nil {
		return err
	}
	return f.writeUnpriced(w, unpriced)
}

// Sessions implements Formatter.Sessions.
func (f *tableFormatter) Sessions(w io.Writer, rows []SessionRow, summary aggregator.SessionsSummary) error {
	if err := f.writeHeader(w, "Sessions"); err != nil {
		return err
	}

	t := table{
		header: []string{"Session", "Title", "Project", "Started", "Duration", "Interactions", "Tokens", "Cost"},
		right:  []bool{false, false, false, false, true, true, true, true},
		flex:   1,
	}
	for _, r := range rows {
		t.rows = append(t.rows, []string{
			r.SessionID,
			orDash(r.Title),
			orDash(r.Project),
			formatTime(r.StartTime, dateTimeLayout),
			FormatDuration(r.DurationMs, r.HasDuration),
			formatNumber(r.Interactions),
			formatNumber(r.Tokens.Total()),
			formatCost(r.Cost),
		})
	}
	if len(rows) > 0 {
		t.footer = []string{
			"Total", "", "", "", "",
			formatNumber(summary.TotalInteractions),
			formatNumber(summary.TotalTokens.Total()),
			formatCost(summary.TotalCost),
		}
	}
	if err := f.writeTable(w, t); err != nil {
		return err
	}

	if summary.TotalSessions > 0 {
		st := summary.Statistics
		stats := table{
			header: []string{"Statistic", "Value"},
			right:  []bool{false, true},
			flex:   -1,
			rows: [][]string{
				{"Sessions", formatNumber(summary.TotalSessions)},
				{"Avg Tokens", formatRate(st.AvgTokens)},
				{"Avg Interactions", formatRate(st.AvgInteractions)},
				{"Avg Cost", formatCost(st.AvgCost)},
				{"Avg Duration", FormatDuration(st.AvgDurationMs, st.AvgDurationMs > 0)},
				{"Min / Max Tokens", formatNumber(st.MinTokens) + " / " + formatNumber(st.MaxTokens)},
				{"P50 / P95 Tokens", formatNumber(st.P50Tokens) + " / " + formatNumber(st.P95Tokens)},
				{"Period", formatTime(summary.EarliestStart, dateLayout) + " to " + formatTime(summary.LatestEnd, dateLayout)},
			},
		}
		if err := f.writeTable(w, stats); err != nil {
			return err
		}
	}

	return f.writeUnpriced(w, summary.UnpricedModels)
}

// Health implements Formatter.Health.
func (f *tableFormatter) Health(w io.Writer, results []health.Result) error {
	if err := f.writeHeader(w, "Session Health"); err != nil {
		return err
	}
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No data")
		return err
	}

	for _, r := range results {
		status := f.paint(f.okStyle, "healthy")
		if !r.Healthy {
			status = f.paint(f.errorStyle, "UNHEALTHY")
		}
		if _, err := fmt.Fprintf(w, "%s  %s  (%d interactions, %s)\n",
			r.SessionID, status, r.Stats.TotalInteractions, formatCost(r.Stats.TotalCost)); err != nil {
			return err
		}

		for _, issue := range r.Issues {
			if _, err := fmt.Fprintf(w, "  %s %s\n", f.paint(f.errorStyle, "issue:"), issue); err != nil {
				return err
			}
		}
		for _, warning := range r.Warnings {
			if _, err := fmt.Fprintf(w, "  %s %s\n", f.paint(f.warnStyle, "warning:"), warning); err != nil {
				return err
			}
		}
	}

	if !f.config.Compact {
		_, err := fmt.Fprintln(w)
		return err
	}
	return nil
}

// BurnRate implements Formatter.BurnRate.
func (f *tableFormatter) BurnRate(w io.Writer, sessionID string, s burnrate.Sample) error {
	if err := f.writeHeader(w, "Burn Rate "+sessionID); err != nil {
		return err
	}

	elapsed := s.Elapsed.Milliseconds()
	return f.writeTable(w, table{
		header: []string{"Metric", "Value"},
		right:  []bool{false, true},
		flex:   -1,
		rows: [][]string{
			{"Files In Window", formatNumber(s.Files)},
			{"Tokens In Window", formatNumber(s.Tokens)},
			{"Elapsed", FormatDuration(elapsed, s.Files >= 2)},
			{"Tokens / Minute", formatRate(s.TokensPerMinute)},
		},
	})
}

// writeHeader writes a section header.
func (f *tableFormatter) writeHeader(w io.Writer, title string) error {
	if f.config.Compact {
		_, err := fmt.Fprintf(w, "%s\n", f.paint(f.titleStyle, title))
		return err
	}

	separator := strings.Repeat("=", lipgloss.Width(title))
	_, err := fmt.Fprintf(w, "\n%s\n%s\n\n", f.paint(f.titleStyle, title), separator)
	return err
}

func (f *tableFormatter) writeUnpriced(w io.Writer, models []string) error {
	if len(models) == 0 {
		return nil
	}
	_, err := fmt.Fprintf(w, "%s %s\n", f.paint(f.warnStyle, "Models without pricing:"), strings.Join(models, ", "))
	return err
}

// writeTable writes a formatted table.
func (f *tableFormatter) writeTable(w io.Writer, t table) error {
	if len(t.rows) == 0 {
		_, err := fmt.Fprintln(w, "No data")
		return err
	}

	widths := columnWidths(t)
	f.fit(widths, t.flex)

	// Write header.
	if err := f.writeRow(w, t.header, widths, t.right, f.headerStyle); err != nil {
		return err
	}

	// Write separator.
	separator := make([]string, len(widths))
	for i, width := range widths {
		separator[i] = strings.Repeat("-", width)
	}
	if !f.config.Compact {
		if err := f.writeRow(w, separator, widths, nil, f.plainStyle); err != nil {
			return err
		}
	}

	// Write rows.
	for _, row := range t.rows {
		if err := f.writeRow(w, row, widths, t.right, f.plainStyle); err != nil {
			return err
		}
	}

	if t.footer != nil {
		if err := f.writeRow(w, separator, widths, nil, f.plainStyle); err != nil {
			return err
		}
		if err := f.writeRow(w, t.footer, widths, t.right, f.totalStyle); err != nil {
			return err
		}
	}

	// Add spacing.
	if !f.config.Compact {
		_, err := fmt.Fprintln(w)
		return err
	}

	return nil
}

// fit shrinks the flex column so rows stay within MaxWidth.
func (f *tableFormatter) fit(widths []int, flex int) {
	if f.config.MaxWidth <= 0 || flex < 0 || flex >= len(widths) {
		return
	}

	total := f.gap() * (len(widths) - 1)
	for _, width := range widths {
		total += width
	}

	if over := total - f.config.MaxWidth; over > 0 {
		const minFlex = 8
		widths[flex] = max(widths[flex]-over, minFlex)
	}
}

func (f *tableFormatter) gap() int {
	if f.config.Compact {
		return 1
	}
	return 2
}

// writeRow writes a single table row.
func (f *tableFormatter) writeRow(w io.Writer, cells []string, widths []int, right []bool, style lipgloss.Style) error {
	var b strings.Builder
	gap := strings.Repeat(" ", f.gap())

	for i, width := range widths {
		if i > 0 {
			b.WriteString(gap)
		}

		cell := ""
		if i < len(cells) {
			cell = truncate(cells[i], width)
		}
		pad := strings.Repeat(" ", width-lipgloss.Width(cell))
		cell = f.paint(style, cell)

		if i < len(right) && right[i] {
			b.WriteString(pad + cell)
		} else if i < len(widths)-1 {
			b.WriteString(cell + pad)
		} else {
			b.WriteString(cell)
		}
	}

	_, err := fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	return err
}

// paint applies style when color is enabled.
func (f *tableFormatter) paint(style lipgloss.Style, s string) string {
	if !f.config.Color || s == "" {
		return s
	}
	return style.Render(s)
}

func columnWidths(t table) []int {
	widths := make([]int, len(t.header))
	measure := func(row []string) {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	measure(t.header)
	for _, row := range t.rows {
		measure(row)
	}
	measure(t.footer)
	return widths
}

// totalsCells renders the columns shared by the rollup tables.
func totalsCells(t aggregator.Totals) []string {
	return []string{
		formatNumber(t.TotalSessions),
		formatNumber(t.TotalInteractions),
		formatNumber(t.TotalTokens.Input),
		formatNumber(t.TotalTokens.Output),
		formatNumber(t.TotalTokens.CacheWrite),
		formatNumber(t.TotalTokens.CacheRead),
		formatNumber(t.TotalTokens.Total()),
		formatCost(t.TotalCost),
		strings.Join(t.ModelsUsed, ", "),
	}
}

func statsCells(s aggregator.UsageStats) []string {
	return []string{
		formatNumber(s.Sessions),
		formatNumber(s.Interactions),
		formatNumber(s.Tokens.Input),
		formatNumber(s.Tokens.Output),
		formatNumber(s.Tokens.CacheWrite),
		formatNumber(s.Tokens.CacheRead),
		formatNumber(s.Tokens.Total()),
		formatCost(s.Cost),
		formatTime(s.FirstSeen, dateLayout),
		formatTime(s.LastSeen, dateLayout),
	}
}

func reportTotalsCells(t aggregator.ReportTotals) []string {
	return []string{
		formatNumber(t.Sessions),
		formatNumber(t.Interactions),
		formatNumber(t.Tokens.Input),
		formatNumber(t.Tokens.Output),
		formatNumber(t.Tokens.CacheWrite),
		formatNumber(t.Tokens.CacheRead),
		formatNumber(t.Tokens.Total()),
		formatCost(t.Cost),
		"", "",
	}
}

// addTotals sums two buckets. Models are not merged; footers omit them.
func addTotals(a, b aggregator.Totals) aggregator.Totals {
	return aggregator.Totals{
		TotalSessions:     a.TotalSessions + b.TotalSessions,
		TotalInteractions: a.TotalInteractions + b.TotalInteractions,
		TotalTokens:       a.TotalTokens.Add(b.TotalTokens),
		TotalCost:         a.TotalCost.Add(b.TotalCost),
	}
}
