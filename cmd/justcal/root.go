package main

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tazhate/justcal/config"
	"github.com/tazhate/justcal/internal/clients/caldav"
	"github.com/tazhate/justcal/internal/output"
	"github.com/tazhate/justcal/internal/service"
	"github.com/tazhate/justcal/internal/storage"
)

// app carries the global flags and the lazily built dependencies shared by
// all commands.
type app struct {
	configPath string
	debug      bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfg   *config.Config
	store *storage.Storage
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{in: in, out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "justcal",
		Short:         "Manage a CalDAV calendar from the terminal",
		Long:          "justcal adds, lists, searches, edits and deletes events on a CalDAV server (Nextcloud, iCloud, Radicale) using natural-language dates and recurrence.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.setupLogging()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/justcal/config.yaml, or $JUSTCAL_CONFIG)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		a.addCmd(),
		a.listCmd(),
		a.searchCmd(),
		a.editCmd(),
		a.deleteCmd(),
		a.configCmd(),
		a.parseCmd(),
		a.syncCmd(),
	)
	return root
}

func (a *app) setupLogging() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: a.errOut, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if a.debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func (a *app) printer() *output.Printer {
	p := output.NewPrinter(a.out)
	if a.cfg != nil {
		p.SetDateFormat(a.cfg.Preferences.DateFormat)
	}
	return p
}

func (a *app) path() (string, error) {
	if a.configPath != "" {
		return a.configPath, nil
	}
	return config.DefaultPath()
}

func (a *app) loadConfig() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	path, err := a.path()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	return cfg, nil
}

// openCache opens the local event cache. A cache that cannot be opened is
// logged and skipped.
func (a *app) openCache(cfg *config.Config) service.Cache {
	if a.store != nil {
		return a.store
	}
	path, err := cfg.CachePath()
	if err != nil || path == "" {
		if err != nil {
			log.Warn().Err(err).Msg("event cache disabled")
		}
		return nil
	}
	store, err := storage.New(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("event cache disabled")
		return nil
	}
	a.store = store
	return store
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
		a.store = nil
	}
}

// connect builds a client for the configured server and selects the
// configured calendar.
func (a *app) connect(ctx context.Context, cfg *config.Config) (*caldav.Client, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if cfg.CalDAV.URL == "" || cfg.CalDAV.Username == "" {
		return nil, caldav.ErrNotConfigured
	}
	password, err := cfg.Password()
	if err != nil {
		return nil, err
	}
	client := caldav.NewClient(cfg.CalDAV.URL, cfg.CalDAV.Username, password, loc)

	cal, err := client.Connect(ctx, cfg.CalDAV.Calendar)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("calendar", cal.Name).Str("path", cal.Path).Msg("connected")
	return client, nil
}

// service returns a calendar service connected to the server.
func (a *app) service(ctx context.Context) (*service.CalendarService, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	client, err := a.connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	opts := []service.Option{
		service.WithDefaultDuration(cfg.Duration()),
		service.WithLogger(log.Logger),
	}
	if cache := a.openCache(cfg); cache != nil {
		opts = append(opts, service.WithCache(cache))
	}
	return service.NewCalendarService(client, loc, opts...), nil
}

// offlineService returns a service without a server connection, for the
// interpreter commands and shell completion. Without a config file the local
// time zone is used.
func (a *app) offlineService(tz string, withCache bool) (*service.CalendarService, error) {
	loc := time.Local
	var opts []service.Option

	if cfg, err := a.loadConfig(); err == nil {
		if loc, err = cfg.Location(); err != nil {
			return nil, err
		}
		if withCache {
			if cache := a.openCache(cfg); cache != nil {
				opts = append(opts, service.WithCache(cache))
			}
		}
	} else {
		log.Debug().Err(err).Msg("no configuration, using local time zone")
	}

	if tz != "" {
		var err error
		if loc, err = time.LoadLocation(tz); err != nil {
			return nil, err
		}
	}
	return service.NewCalendarService(nil, loc, opts...), nil
}

// completeUID offers cached UIDs for commands taking an event UID.
func (a *app) completeUID(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	svc, err := a.offlineService("", true)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	defer a.close()
	return svc.CompleteUID(toComplete), cobra.ShellCompDirectiveNoFileComp
}
