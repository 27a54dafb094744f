package monitor

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/0xmhha/session-monitor/pkg/display"
)

// ClearScreen moves the cursor home and clears the terminal.
const ClearScreen = "\033[H\033[2J"

// RenderOptions controls frame rendering.
type RenderOptions struct {
	// Color enables lipgloss styling.
	Color bool

	// BarWidth is the width of progress bars. Default: 30.
	BarWidth int
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
)

// Render writes one dashboard frame for u.
func Render(w io.Writer, u Update, opts RenderOptions) error {
	if opts.BarWidth <= 0 {
		opts.BarWidth = 30
	}
	paint := func(style lipgloss.Style, s string) string {
		if !opts.Color {
			return s
		}
		return style.Render(s)
	}

	var b strings.Builder
	line := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", paint(labelStyle, fmt.Sprintf("%-14s", label)), value)
	}

	sum := u.Summary
	fmt.Fprintf(&b, "%s  %s\n\n", paint(titleStyle, "Live Session Monitor"), u.Timestamp.Format("15:04:05"))

	line("Session", u.Session.SessionID)
	if u.Session.SessionTitle != "" {
		line("Title", u.Session.SessionTitle)
	}
	if u.Session.ProjectName != "" {
		line("Project", u.Session.ProjectName)
	}
	if sum.HasStart() {
		line("Started", sum.StartTime.Format("2006-01-02 15:04:05"))
	}
	ms, ok := sum.DurationMs()
	line("Duration", display.FormatDuration(ms, ok))
	if len(sum.ModelsUsed) > 0 {
		line("Models", strings.Join(sum.ModelsUsed, ", "))
	}
	b.WriteString("\n")

	line("Interactions", fmt.Sprintf("%s %s", humanize.Comma(int64(sum.InteractionCount)), signed(int64(u.Delta.NewInteractions))))
	line("Input", fmt.Sprintf("%s %s", humanize.Comma(sum.TotalTokens.Input), signed(u.Delta.Tokens.Input)))
	line("Output", fmt.Sprintf("%s %s", humanize.Comma(sum.TotalTokens.Output), signed(u.Delta.Tokens.Output)))
	line("Cache Write", humanize.Comma(sum.TotalTokens.CacheWrite))
	line("Cache Read", humanize.Comma(sum.TotalTokens.CacheRead))
	line("Total Tokens", fmt.Sprintf("%s %s", humanize.Comma(sum.TotalTokens.Total()), signed(u.Delta.Tokens.Total())))
	line("Cost", fmt.Sprintf("%s (session +%s)", dollars(u.Cost), dollars(u.Cumulative.Cost)))
	b.WriteString("\n")

	rate := "idle"
	if u.BurnRate.Files >= 2 {
		rate = fmt.Sprintf("%s tokens/min", humanize.FormatFloat("#,###.#", u.BurnRate.TokensPerMinute))
	}
	line("Burn Rate", fmt.Sprintf("%s (%d files in window)", rate, u.BurnRate.Files))

	if c := u.Context; c != nil {
		line("Context", fmt.Sprintf("%s %5.1f%% of %s (%s)",
			bar(c.Percent, opts.BarWidth, paint), c.Percent, humanize.Comma(c.Window), c.ModelID))
	}
	if q := u.Quota; q != nil {
		line("Quota", fmt.Sprintf("%s %5.1f%% of %s",
			bar(q.Percent, opts.BarWidth, paint), q.Percent, dollars(q.Limit)))
	}
	b.WriteString("\n")

	status := paint(okStyle, "healthy")
	if !u.Health.Healthy {
		status = paint(errorStyle, "UNHEALTHY")
	}
	line("Health", status)
	for _, issue := range u.Health.Issues {
		fmt.Fprintf(&b, "  %s %s\n", paint(errorStyle, "issue:"), issue)
	}
	for _, warning := range u.Health.Warnings {
		fmt.Fprintf(&b, "  %s %s\n", paint(warnStyle, "warning:"), warning)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// bar draws a progress bar, colored by how full it is.
func bar(percent float64, width int, paint func(lipgloss.Style, string) string) string {
	filled := int(percent / 100 * float64(width))
	filled = max(0, min(filled, width))

	style := okStyle
	switch {
	case percent >= 90:
		style = errorStyle
	case percent >= 70:
		style = warnStyle
	}
	return "[" + paint(style, strings.Repeat("█", filled)) + strings.Repeat("░", width-filled) + "]"
}

func signed(n int64) string {
	if n == 0 {
		return ""
	}
	if n > 0 {
		return "(+" + humanize.Comma(n) + ")"
	}
	return "(" + humanize.Comma(n) + ")"
}

func dollars(d decimal.Decimal) string {
	return "$" + humanize.FormatFloat("#,###.##", d.Round(2).InexactFloat64())
}
