package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"golang.org/x/term"
)

// DefaultTerminalWidth is the fallback width when detection fails.
const DefaultTerminalWidth = 80

// New creates a new formatter based on configuration.
//
// Parameters:
//   - cfg: Formatter configuration
//
// Returns a configured Formatter.
func New(cfg Config) Formatter {
	// Set defaults.
	if cfg.Format == "" {
		cfg.Format = FormatTable
	}

	switch cfg.Format {
	case FormatJSON:
		return &jsonFormatter{config: cfg}
	case FormatCSV:
		return &csvFormatter{config: cfg}
	case FormatTable:
		fallthrough
	default:
		return newTableFormatter(cfg)
	}
}

// ParseFormat validates an output format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatCSV:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown output format %q: must be table, json, or csv", s)
	}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) // nolint:gosec
}

// TerminalWidth returns the width of w if it is a terminal, 0 otherwise.
func TerminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) { // nolint:gosec
		return 0
	}

	width, _, err := term.GetSize(int(f.Fd())) // nolint:gosec
	if err != nil || width <= 0 {
		return DefaultTerminalWidth
	}
	return width
}

// FormatDuration renders a duration in milliseconds as "45s", "12m",
// "2h" or "1h 30m". Unknown or negative durations render as "N/A".
func FormatDuration(ms int64, ok bool) string {
	if !ok || ms < 0 {
		return "N/A"
	}

	d := time.Duration(ms) * time.Millisecond
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int64(d/time.Second))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int64(d/time.Minute))
	}

	hours := int64(d / time.Hour)
	minutes := int64((d % time.Hour) / time.Minute)
	if minutes == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// formatNumber formats a number with thousand separators.
func formatNumber[T int | int64](n T) string {
	return humanize.Comma(int64(n))
}

// formatCost formats a cost as dollars with two decimals.
func formatCost(d decimal.Decimal) string {
	return "$" + humanize.FormatFloat("#,###.##", d.Round(2).InexactFloat64())
}

// formatRate formats a tokens-per-minute rate.
func formatRate(f float64) string {
	return humanize.FormatFloat("#,###.#", f)
}

// formatTime formats a timestamp, "-" when unknown.
func formatTime(t time.Time, layout string) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(layout)
}

// truncate shortens s to width display cells, marking the cut with "…".
func truncate(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}

	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}

// orDash returns s, or "-" when s is empty.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
