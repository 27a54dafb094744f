package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xmhha/session-monitor/pkg/aggregator"
	"github.com/0xmhha/session-monitor/pkg/config"
	"github.com/0xmhha/session-monitor/pkg/discovery"
	"github.com/0xmhha/session-monitor/pkg/display"
	"github.com/0xmhha/session-monitor/pkg/logger"
	"github.com/0xmhha/session-monitor/pkg/parser"
	"github.com/0xmhha/session-monitor/pkg/pricing"
	"github.com/0xmhha/session-monitor/pkg/reader"
	"github.com/0xmhha/session-monitor/pkg/session"
	"github.com/0xmhha/session-monitor/pkg/usage"
)

// app holds everything a command needs once configuration is loaded.
type app struct {
	cmd       *cobra.Command
	opts      *options
	cfg       *config.Config
	log       logger.Logger
	pricing   usage.PricingTable
	loc       *time.Location
	weekStart aggregator.Weekday
	format    display.Format

	readers []reader.Reader
	out     io.WriteCloser
}

// newApp loads configuration and pricing for cmd.
func newApp(cmd *cobra.Command, opts *options) (*app, error) {
	cfg, err := config.NewLoader(opts.configPath).Load()
	if err != nil {
		return nil, err
	}
	if opts.verbose {
		cfg.Logging.Level = "debug"
	}

	var log logger.Logger
	if cfg.Logging.Output == "" || cfg.Logging.Output == "stderr" {
		log = logger.NewWithWriter(cfg.Logging, cmd.ErrOrStderr())
	} else {
		log = logger.New(cfg.Logging)
	}

	table, err := pricing.Load(cfg.Pricing.File)
	if err != nil {
		return nil, fmt.Errorf("failed to load pricing: %w", err)
	}

	loc, err := cfg.Reports.Location()
	if err != nil {
		return nil, err
	}
	weekStart, err := cfg.Reports.WeekStart()
	if err != nil {
		return nil, err
	}

	name := opts.format
	if name == "" {
		name = cfg.Display.DefaultFormat
	}
	format, err := display.ParseFormat(name)
	if err != nil {
		return nil, err
	}

	log.Debug("configuration loaded",
		"messages_dir", cfg.Paths.MessagesDir,
		"format", format,
		"timezone", loc.String(),
		"models_priced", len(table))

	return &app{
		cmd:       cmd,
		opts:      opts,
		cfg:       cfg,
		log:       log,
		pricing:   table,
		loc:       loc,
		weekStart: weekStart,
		format:    format,
	}, nil
}

// messagesDir returns dir, or the configured messages directory.
func (a *app) messagesDir(dir string) string {
	if dir != "" {
		return discovery.ExpandHome(dir)
	}
	return discovery.ExpandHome(a.cfg.Paths.MessagesDir)
}

// discoverer returns a Discoverer scanning base.
func (a *app) discoverer(base string) discovery.Discoverer {
	return discovery.New([]string{base}, logger.Component(a.log, "discovery"))
}

// reader builds a Reader over base. The snapshot cache is used when
// enabled and openable; otherwise sessions are read from disk every time.
func (a *app) reader(base string) (reader.Reader, discovery.Discoverer, error) {
	disc := a.discoverer(base)

	var store reader.SnapshotStore
	if a.cfg.Storage.CacheEnabled && a.cfg.Storage.DBPath != "" {
		s, err := reader.NewBoltSnapshotStore(reader.StoreConfig{
			DBPath:  discovery.ExpandHome(a.cfg.Storage.DBPath),
			Timeout: time.Second,
		}, logger.Component(a.log, "store"))
		if err != nil {
			a.log.Warn("snapshot cache unavailable, reading without cache", "error", err)
		} else {
			store = s
		}
	}

	r, err := reader.New(reader.Config{
		Discoverer:     disc,
		Parser:         parser.New(),
		Store:          store,
		SessionInfoDir: discovery.ExpandHome(a.cfg.Paths.SessionInfoDir),
		Workers:        a.cfg.Performance.WorkerPoolSize,
		MaxRetries:     retries(a.cfg.Performance.MaxRetries),
	}, logger.Component(a.log, "reader"))
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, nil, fmt.Errorf("failed to create reader: %w", err)
	}

	a.readers = append(a.readers, r)
	return r, disc, nil
}

// retries maps the configured retry count onto reader.Config, where zero
// selects the default.
func retries(n int) int {
	if n == 0 {
		return -1
	}
	return n
}

// loadSessions reads every session under the messages directory dir.
func (a *app) loadSessions(dir string, limit int) ([]session.SessionData, error) {
	r, _, err := a.reader(a.messagesDir(dir))
	if err != nil {
		return nil, err
	}

	sessions, err := r.LoadRecent(a.cmd.Context(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}
	a.log.Debug("sessions loaded", "count", len(sessions))
	return sessions, nil
}

// resolveSession returns the session directory named by arg. A directory
// named like a session id is used as is; anything else is a messages
// directory whose most recent session is picked.
func (a *app) resolveSession(arg string) (string, reader.Reader, error) {
	dir := a.messagesDir(arg)

	if arg != "" && discovery.IsValidSessionID(filepath.Base(filepath.Clean(dir))) {
		r, _, err := a.reader(filepath.Dir(filepath.Clean(dir)))
		if err != nil {
			return "", nil, err
		}
		return dir, r, nil
	}

	r, disc, err := a.reader(dir)
	if err != nil {
		return "", nil, err
	}
	latest, err := disc.Latest()
	if err != nil {
		if errors.Is(err, discovery.ErrNoSessionsFound) {
			return "", nil, fmt.Errorf("no sessions found in %s", dir)
		}
		return "", nil, err
	}
	return latest.Path, r, nil
}

// readSession loads the session named by arg.
func (a *app) readSession(arg string) (session.SessionData, string, error) {
	dir, r, err := a.resolveSession(arg)
	if err != nil {
		return session.SessionData{}, "", err
	}

	data, err := r.ReadSession(a.cmd.Context(), dir)
	if err != nil {
		return session.SessionData{}, "", fmt.Errorf("failed to read session: %w", err)
	}
	return data, dir, nil
}

// output returns the report destination: the --output file, or the
// command's stdout.
func (a *app) output() (io.Writer, error) {
	if a.opts.output == "" {
		return a.cmd.OutOrStdout(), nil
	}

	path := discovery.ExpandHome(a.opts.output)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path) // nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	a.out = f
	return f, nil
}

// formatter returns the formatter for w. Color and width only apply to
// table output on a terminal.
func (a *app) formatter(w io.Writer) display.Formatter {
	tty := display.IsTerminal(w)
	return display.New(display.Config{
		Format:   a.format,
		Color:    a.format == display.FormatTable && tty && a.cfg.Display.ColorEnabled && !a.opts.noColor,
		MaxWidth: display.TerminalWidth(w),
	})
}

// render writes a report through the configured formatter.
func (a *app) render(fn func(f display.Formatter, w io.Writer) error) error {
	w, err := a.output()
	if err != nil {
		return err
	}
	if err := fn(a.formatter(w), w); err != nil {
		return err
	}
	if a.out != nil {
		a.log.Info("report written", "path", a.opts.output)
	}
	return nil
}

// Close releases readers and the output file.
func (a *app) Close() error {
	var errs []error
	for _, r := range a.readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.out != nil {
		if err := a.out.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close output file: %w", err))
		}
	}
	return errors.Join(errs...)
}

// withApp adapts a command body to cobra, loading and releasing the app.
func withApp(opts *options, run func(a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, opts)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.Close(); err == nil {
				err = cerr
			}
		}()
		return run(a, args)
	}
}
