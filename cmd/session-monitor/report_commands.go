package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/0xmhha/session-monitor/pkg/aggregator"
	"github.com/0xmhha/session-monitor/pkg/display"
	"github.com/0xmhha/session-monitor/pkg/session"
)

const dateLayout = "2006-01-02"

// rollupOptions returns the calendar options shared by the rollup reports.
func (a *app) rollupOptions() aggregator.Options {
	return aggregator.Options{
		Location:     a.loc,
		WeekStartDay: a.weekStart,
		Pricing:      a.pricing,
	}
}

// yearRange bounds sessions to a calendar year; zero means no bound.
func (a *app) yearRange(sessions []session.SessionData, year int) []session.SessionData {
	if year == 0 {
		return sessions
	}
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, a.loc)
	end := time.Date(year, time.December, 31, 0, 0, 0, 0, a.loc)
	return aggregator.FilterByDate(sessions, &start, &end, a.loc)
}

// breakdown prints a per-model table below each bucket of a rollup.
func (a *app) breakdown(f display.Formatter, w io.Writer, title string, sessions []session.SessionData) error {
	report, err := aggregator.ModelBreakdown(sessions, aggregator.BreakdownOptions{
		Location:     a.loc,
		WeekStartDay: a.weekStart,
		Pricing:      a.pricing,
	})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "\n%s\n", title); err != nil {
		return err
	}
	return f.Models(w, report)
}

// requireTable rejects --breakdown for machine-readable formats.
func (a *app) requireTable(flag string) error {
	if a.format != display.FormatTable {
		return fmt.Errorf("--%s is only supported with table output", flag)
	}
	return nil
}

func newDailyCmd(opts *options) *cobra.Command {
	var (
		month     string
		breakdown bool
	)

	cmd := &cobra.Command{
		Use:   "daily [dir]",
		Short: "Show usage per day",
		Long: `Show token usage and cost per calendar day. Days are cut in the
configured timezone; a session counts on the day it started.`,
		Args: cobra.MaximumNArgs(1),
		RunE: withApp(opts, func(a *app, args []string) error {
			if breakdown {
				if err := a.requireTable("breakdown"); err != nil {
					return err
				}
			}

			sessions, err := a.loadSessions(firstArg(args), 0)
			if err != nil {
				return err
			}

			if month != "" {
				m, err := time.ParseInLocation("2006-01", month, a.loc)
				if err != nil {
					return fmt.Errorf("invalid --month %q: expected YYYY-MM", month)
				}
				start, end := aggregator.MonthRange(m.Year(), m.Month(), a.loc)
				sessions = aggregator.FilterByDate(sessions, &start, &end, a.loc)
			}

			days, err := aggregator.Daily(sessions, a.rollupOptions())
			if err != nil {
				return err
			}

			return a.render(func(f display.Formatter, w io.Writer) error {
				if err := f.Daily(w, days); err != nil {
					return err
				}
				if !breakdown {
					return nil
				}
				for _, d := range days {
					if err := a.breakdown(f, w, d.Date.Format(dateLayout), d.Sessions); err != nil {
						return err
					}
				}
				return nil
			})
		}),
	}

	cmd.Flags().StringVar(&month, "month", "", "only show the given month (YYYY-MM)")
	cmd.Flags().BoolVar(&breakdown, "breakdown", false, "show a per-model breakdown for every day")
	return cmd
}

func newWeeklyCmd(opts *options) *cobra.Command {
	var (
		year      int
		startDay  string
		breakdown bool
	)

	cmd := &cobra.Command{
		Use:   "weekly [dir]",
		Short: "Show usage per week",
		Long: `Show token usage and cost per 7-day week. Weeks begin on the configured
week start day unless --start-day is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: withApp(opts, func(a *app, args []string) error {
			if breakdown {
				if err := a.requireTable("breakdown"); err != nil {
					return err
				}
			}
			if startDay != "" {
				day, err := aggregator.ParseWeekday(startDay)
				if err != nil {
					return err
				}
				a.weekStart = day
			}

			sessions, err := a.loadSessions(firstArg(args), 0)
			if err != nil {
				return err
			}
			sessions = a.yearRange(sessions, year)

			weeks, err := aggregator.Weekly(sessions, a.rollupOptions())
			if err != nil {
				return err
			}

			return a.render(func(f display.Formatter, w io.Writer) error {
				if err := f.Weekly(w, weeks); err != nil {
					return err
				}
				if !breakdown {
					return nil
				}
				for _, wk := range weeks {
					title := aggregator.FormatWeekRange(wk.StartDate, wk.EndDate)
					if err := a.breakdown(f, w, title, wk.Sessions); err != nil {
						return err
					}
				}
				return nil
			})
		}),
	}

	cmd.Flags().IntVar(&year, "year", 0, "only show weeks of the given year")
	cmd.Flags().StringVar(&startDay, "start-day", "", "first day of the week (monday..sunday)")
	cmd.Flags().BoolVar(&breakdown, "breakdown", false, "show a per-model breakdown for every week")
	return cmd
}

func newMonthlyCmd(opts *options) *cobra.Command {
	var (
		year      int
		breakdown bool
	)

	cmd := &cobra.Command{
		Use:   "monthly [dir]",
		Short: "Show usage per month",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(opts, func(a *app, args []string) error {
			if breakdown {
				if err := a.requireTable("breakdown"); err != nil {
					return err
				}
			}

			sessions, err := a.loadSessions(firstArg(args), 0)
			if err != nil {
				return err
			}
			sessions = a.yearRange(sessions, year)

			months, err := aggregator.Monthly(sessions, a.rollupOptions())
			if err != nil {
				return err
			}

			return a.render(func(f display.Formatter, w io.Writer) error {
				if err := f.Monthly(w, months); err != nil {
					return err
				}
				if !breakdown {
					return nil
				}
				for _, m := range months {
					title := fmt.Sprintf("%s %d", m.Month, m.Year)
					if err := a.breakdown(f, w, title, m.Sessions); err != nil {
						return err
					}
				}
				return nil
			})
		}),
	}

	cmd.Flags().IntVar(&year, "year", 0, "only show months of the given year")
	cmd.Flags().BoolVar(&breakdown, "breakdown", false, "show a per-model breakdown for every month")
	return cmd
}

// breakdownFlags are the filters shared by models and projects.
type breakdownFlags struct {
	timeframe string
	startDate string
	endDate   string
}

func (b *breakdownFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&b.timeframe, "timeframe", "", "all, daily, weekly or monthly (default from config)")
	cmd.Flags().StringVar(&b.startDate, "start-date", "", "first session start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&b.endDate, "end-date", "", "last session start date (YYYY-MM-DD)")
}

// options parses the flags into breakdown options.
func (b *breakdownFlags) options(a *app) (aggregator.BreakdownOptions, error) {
	name := b.timeframe
	if name == "" {
		name = a.cfg.Reports.DefaultTimeframe
	}
	tf, err := aggregator.ParseTimeframe(name)
	if err != nil {
		return aggregator.BreakdownOptions{}, err
	}

	start, err := parseDate("start-date", b.startDate, a.loc)
	if err != nil {
		return aggregator.BreakdownOptions{}, err
	}
	end, err := parseDate("end-date", b.endDate, a.loc)
	if err != nil {
		return aggregator.BreakdownOptions{}, err
	}

	return aggregator.BreakdownOptions{
		Timeframe:    tf,
		StartDate:    start,
		EndDate:      end,
		Location:     a.loc,
		WeekStartDay: a.weekStart,
		Pricing:      a.pricing,
	}, nil
}

func newModelsCmd(opts *options) *cobra.Command {
	var flags breakdownFlags

	cmd := &cobra.Command{
		Use:   "models [dir]",
		Short: "Show usage per model",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(opts, func(a *app, args []string) error {
			bo, err := flags.options(a)
			if err != nil {
				return err
			}

			sessions, err := a.loadSessions(firstArg(args), 0)
			if err != nil {
				return err
			}

			report, err := aggregator.ModelBreakdown(sessions, bo)
			if err != nil {
				return err
			}
			if len(report.UnpricedModels) > 0 {
				a.log.Warn("models without pricing are costed at zero",
					"models", strings.Join(report.UnpricedModels, ","))
			}

			return a.render(func(f display.Formatter, w io.Writer) error {
				return f.Models(w, report)
			})
		}),
	}

	flags.register(cmd)
	return cmd
}

func newProjectsCmd(opts *options) *cobra.Command {
	var flags breakdownFlags

	cmd := &cobra.Command{
		Use:   "projects [dir]",
		Short: "Show usage per project",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(opts, func(a *app, args []string) error {
			bo, err := flags.options(a)
			if err != nil {
				return err
			}

			sessions, err := a.loadSessions(firstArg(args), 0)
			if err != nil {
				return err
			}

			report, err := aggregator.ProjectBreakdown(sessions, bo)
			if err != nil {
				return err
			}

			return a.render(func(f display.Formatter, w io.Writer) error {
				return f.Projects(w, report)
			})
		}),
	}

	flags.register(cmd)
	return cmd
}

// exportable lists the reports export accepts.
var exportable = []string{"sessions", "daily", "weekly", "monthly", "models", "projects"}

func newExportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "export <report> [dir]",
		Short: "Write a report to the export directory",
		Long: fmt.Sprintf(`Write a report to a timestamped file in the configured export directory.
The format defaults to CSV; --format and --output override it.

Reports: %s`, strings.Join(exportable, ", ")),
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			report := args[0]
			if !lo.Contains(exportable, report) {
				return fmt.Errorf("unknown report %q: must be one of %s", report, strings.Join(exportable, ", "))
			}

			target, _, err := cmd.Root().Find([]string{report})
			if err != nil || target.RunE == nil {
				return fmt.Errorf("report %q is not available", report)
			}

			if opts.format == "" {
				opts.format = string(display.FormatCSV)
			}
			if opts.output == "" {
				a, err := newApp(cmd, opts)
				if err != nil {
					return err
				}
				opts.output = filepath.Join(a.cfg.Paths.ExportDir,
					fmt.Sprintf("%s-%s.%s", report, time.Now().Format("20060102-150405"), a.format))
				_ = a.Close()
			}

			target.SetContext(cmd.Context())
			if err := target.RunE(target, args[1:]); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Exported %s report to %s\n", report, opts.output)
			return err
		},
	}
}

// parseDate parses an optional YYYY-MM-DD flag in loc.
func parseDate(flag, value string, loc *time.Location) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, value, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s %q: expected YYYY-MM-DD", flag, value)
	}
	return &t, nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
