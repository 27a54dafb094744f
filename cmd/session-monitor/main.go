// Package main provides the session-monitor CLI application.
//
// Session Monitor analyzes OpenCode session logs: per-session totals,
// daily, weekly and monthly rollups, model and project breakdowns, burn
// rates, health checks and a live dashboard.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set during build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// options holds the global flags.
type options struct {
	configPath string
	verbose    bool
	format     string
	output     string
	noColor    bool
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "session-monitor",
		Short: "Usage and cost analytics for OpenCode sessions",
		Long: `Session Monitor reads OpenCode message storage and reports token usage
and cost per session, per day, week and month, per model and per project.

Commands that take [dir] accept a session directory or a messages
directory; without it the configured messages directory is used.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to configuration file (YAML or TOML)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVarP(&opts.format, "format", "f", "", "output format: table, json or csv (default from config)")
	flags.StringVarP(&opts.output, "output", "o", "", "write the report to a file instead of stdout")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newSessionCmd(opts),
		newSessionsCmd(opts),
		newDailyCmd(opts),
		newWeeklyCmd(opts),
		newMonthlyCmd(opts),
		newModelsCmd(opts),
		newProjectsCmd(opts),
		newBurnRateCmd(opts),
		newHealthCmd(opts),
		newLiveCmd(opts),
		newExportCmd(opts),
		newConfigCmd(opts),
	)

	return root
}
