package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xmhha/session-monitor/pkg/discovery"
	"github.com/0xmhha/session-monitor/pkg/display"
	"github.com/0xmhha/session-monitor/pkg/logger"
	"github.com/0xmhha/session-monitor/pkg/monitor"
	"github.com/0xmhha/session-monitor/pkg/watcher"
)

func newLiveCmd(opts *options) *cobra.Command {
	var (
		interval time.Duration
		noClear  bool
		once     bool
	)

	cmd := &cobra.Command{
		Use:   "live [dir]",
		Short: "Follow the active session in real time",
		Long: `Show a live dashboard of the most recently active session: token and
cost totals with the change since monitoring started, burn rate, context
window fill, session quota and health. The view follows newer sessions as
they appear unless [dir] names a session directory.

With --format json every update is written as one JSON line.`,
		Args: cobra.MaximumNArgs(1),
		RunE: withApp(opts, func(a *app, args []string) error {
			if !a.cmd.Flags().Changed("interval") {
				interval = a.cfg.Monitoring.RefreshInterval
			} else if interval <= 0 {
				return fmt.Errorf("%w: --interval must be positive, got %s", monitor.ErrInvalidConfig, interval)
			}

			cfg := monitor.Config{
				RefreshInterval: interval,
				BurnRateWindow:  a.cfg.Monitoring.BurnRateWindow,
				Pricing:         a.pricing,
			}

			base := a.messagesDir(firstArg(args))
			if discovery.IsValidSessionID(filepath.Base(filepath.Clean(base))) {
				cfg.SessionDir = base
				base = filepath.Dir(filepath.Clean(base))
			} else {
				cfg.MessagesDir = base
			}

			v, err := a.validator()
			if err != nil {
				return err
			}
			cfg.Validator = v

			r, disc, err := a.reader(base)
			if err != nil {
				return err
			}

			w, err := watcher.New(watcher.Config{
				DebounceInterval: a.cfg.Monitoring.DebounceInterval,
			}, logger.Component(a.log, "watcher"))
			if err != nil {
				return fmt.Errorf("failed to create watcher: %w", err)
			}
			defer func() { _ = w.Close() }()

			mon, err := monitor.New(cfg, w, r, disc, logger.Component(a.log, "monitor"))
			if err != nil {
				return err
			}
			defer func() { _ = mon.Close() }()

			ctx := a.cmd.Context()
			if err := mon.Start(ctx); err != nil {
				return fmt.Errorf("failed to start live monitor: %w", err)
			}

			out := a.cmd.OutOrStdout()
			draw := a.liveRenderer(out, !noClear && !once)

			if once {
				u, _ := mon.Latest()
				return draw(u)
			}

			for {
				select {
				case <-ctx.Done():
					return nil
				case u, ok := <-mon.Updates():
					if !ok {
						return nil
					}
					if err := draw(u); err != nil {
						return err
					}
				}
			}
		}),
	}

	cmd.Flags().DurationVarP(&interval, "interval", "i", 0, "refresh interval (default from config)")
	cmd.Flags().BoolVar(&noClear, "no-clear", false, "do not clear the screen between updates")
	cmd.Flags().BoolVar(&once, "once", false, "print the current state and exit")
	return cmd
}

// liveRenderer returns the function drawing one update to out.
func (a *app) liveRenderer(out io.Writer, clearScreen bool) func(monitor.Update) error {
	if a.format == display.FormatJSON {
		enc := json.NewEncoder(out)
		return func(u monitor.Update) error {
			return enc.Encode(u)
		}
	}

	tty := display.IsTerminal(out)
	ro := monitor.RenderOptions{
		Color: tty && a.cfg.Display.ColorEnabled && !a.opts.noColor,
	}
	clearScreen = clearScreen && tty

	return func(u monitor.Update) error {
		if clearScreen {
			if _, err := io.WriteString(out, monitor.ClearScreen); err != nil {
				return err
			}
		}
		return monitor.Render(out, u, ro)
	}
}
