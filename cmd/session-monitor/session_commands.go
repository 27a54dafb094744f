package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xmhha/session-monitor/pkg/aggregator"
	"github.com/0xmhha/session-monitor/pkg/burnrate"
	"github.com/0xmhha/session-monitor/pkg/discovery"
	"github.com/0xmhha/session-monitor/pkg/display"
	"github.com/0xmhha/session-monitor/pkg/health"
	"github.com/0xmhha/session-monitor/pkg/logger"
	"github.com/0xmhha/session-monitor/pkg/session"
)

// validator builds the health validator from the configured thresholds.
func (a *app) validator() (health.Validator, error) {
	threshold, err := a.cfg.Health.Threshold()
	if err != nil {
		return nil, err
	}
	return health.New(health.Config{
		CostThreshold:   threshold,
		LongInteraction: a.cfg.Health.LongInteraction,
	}, a.pricing), nil
}

func newSessionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "session [dir]",
		Short: "Show a single session",
		Long: `Show the totals and per-model breakdown of one session.

[dir] is a session directory (ses_*), or a messages directory whose most
recent session is shown. Without it the most recent session under the
configured messages directory is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: withApp(opts, func(a *app, args []string) error {
			data, _, err := a.readSession(firstArg(args))
			if err != nil {
				return err
			}

			detail := display.NewSessionDetail(data, a.pricing)
			return a.render(func(f display.Formatter, w io.Writer) error {
				return f.Session(w, detail)
			})
		}),
	}
}

func newSessionsCmd(opts *options) *cobra.Command {
	var (
		limit  int
		models []string
	)

	cmd := &cobra.Command{
		Use:   "sessions [dir]",
		Short: "List sessions with totals",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(opts, func(a *app, args []string) error {
			sessions, err := a.loadSessions(firstArg(args), limit)
			if err != nil {
				return err
			}
			sessions = aggregator.FilterByModels(sessions, models)

			rows := display.NewSessionRows(sessions, a.pricing)
			summary := aggregator.Summarize(sessions, a.pricing)
			return a.render(func(f display.Formatter, w io.Writer) error {
				return f.Sessions(w, rows, summary)
			})
		}),
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "only the n most recent sessions (0 for all)")
	cmd.Flags().StringSliceVar(&models, "model", nil, "only sessions that used one of these models")
	return cmd
}

func newHealthCmd(opts *options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "health [dir]",
		Short: "Check sessions for data problems",
		Long: `Validate sessions and report blocking issues and warnings: negative
token counts, interactions completed before they were created, missing
timing data, models without pricing, long interactions and sessions above
the cost threshold.

[dir] is a session directory, or a messages directory whose sessions are
all checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: withApp(opts, func(a *app, args []string) error {
			v, err := a.validator()
			if err != nil {
				return err
			}

			var sessions []session.SessionData
			if arg := firstArg(args); arg != "" && discovery.IsValidSessionID(filepath.Base(filepath.Clean(arg))) {
				data, _, err := a.readSession(arg)
				if err != nil {
					return err
				}
				sessions = []session.SessionData{data}
			} else {
				sessions, err = a.loadSessions(arg, limit)
				if err != nil {
					return err
				}
			}

			results := make([]health.Result, 0, len(sessions))
			for _, s := range sessions {
				results = append(results, v.Validate(s))
			}

			return a.render(func(f display.Formatter, w io.Writer) error {
				return f.Health(w, results)
			})
		}),
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "only check the n most recent sessions (0 for all)")
	return cmd
}

func newBurnRateCmd(opts *options) *cobra.Command {
	var window time.Duration

	cmd := &cobra.Command{
		Use:   "burn-rate [dir]",
		Short: "Show the token burn rate of a session",
		Long: `Show the tokens per minute of the message files a session wrote within
the trailing window.`,
		Args: cobra.MaximumNArgs(1),
		RunE: withApp(opts, func(a *app, args []string) error {
			if !a.cmd.Flags().Changed("window") {
				window = a.cfg.Monitoring.BurnRateWindow
			}

			dir, _, err := a.resolveSession(firstArg(args))
			if err != nil {
				return err
			}

			meter := burnrate.New(burnrate.Config{
				Logger: logger.Component(a.log, "burnrate"),
			})
			sample, err := meter.Measure(dir, window)
			if err != nil {
				return fmt.Errorf("failed to measure burn rate: %w", err)
			}

			return a.render(func(f display.Formatter, w io.Writer) error {
				return f.BurnRate(w, filepath.Base(dir), sample)
			})
		}),
	}

	cmd.Flags().DurationVarP(&window, "window", "w", 0, "trailing window (default from config)")
	return cmd
}
