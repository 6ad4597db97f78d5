package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tazhate/justcal/config"
)

func (a *app) configCmd() *cobra.Command {
	var doInit, show, test, set bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Example: `  justcal config --init
  justcal config --show
  justcal config --test
  justcal config --set preferences.timezone Europe/Berlin`,
		Args: func(cmd *cobra.Command, args []string) error {
			if set {
				if len(args) != 2 {
					return fmt.Errorf("--set takes KEY VALUE, e.g. --set caldav.calendar Work")
				}
				return nil
			}
			return cobra.NoArgs(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.path()
			if err != nil {
				return err
			}
			p := a.printer()

			switch {
			case doInit:
				if _, err := config.Init(path, config.NewPrompter(a.in, a.out)); err != nil {
					return err
				}
				p.Success("Configuration initialized successfully")
				p.Printf("  Saved to %s\n", path)

			case show:
				cfg, err := a.loadConfig()
				if err != nil {
					return err
				}
				out, err := cfg.Show()
				if err != nil {
					return err
				}
				p.Printf("Configuration file: %s\n\n%s", cfg.Path(), out)

			case test:
				cfg, err := a.loadConfig()
				if err != nil {
					return err
				}
				p.Printf("Testing connection to %s...\n", cfg.CalDAV.URL)
				if _, err := a.connect(cmd.Context(), cfg); err != nil {
					return fmt.Errorf("connection failed: %w", err)
				}
				p.Success("Connection successful!")

			case set:
				return a.setConfig(path, args[0], args[1])
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&doInit, "init", false, "interactive setup")
	f.BoolVar(&show, "show", false, "show current configuration")
	f.BoolVar(&test, "test", false, "test the CalDAV connection")
	f.BoolVar(&set, "set", false, "set a value: --set KEY VALUE (keys: section.key)")
	cmd.MarkFlagsMutuallyExclusive("init", "show", "test", "set")
	cmd.MarkFlagsOneRequired("init", "show", "test", "set")
	return cmd
}

// setConfig updates one key in the file itself, ignoring environment
// overrides. The password goes through the keyring.
func (a *app) setConfig(path, key, value string) error {
	cfg, err := config.LoadFile(path)
	if errors.Is(err, config.ErrNotFound) {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return err
	}
	p := a.printer()

	shown := value
	if strings.EqualFold(key, "caldav.password") {
		inKeyring, err := cfg.SetPassword(value)
		if err != nil {
			return err
		}
		if !inKeyring {
			p.Warning("Password stored in the config file (keyring unavailable or disabled)")
		}
		shown = "***"
	} else if err := cfg.Set(key, value); err != nil {
		return err
	}

	if err := cfg.Save(path); err != nil {
		return err
	}
	p.Success("Configuration updated: %s = %s", key, shown)
	return nil
}
