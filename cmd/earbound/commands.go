package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kilimcininkoroglu/earbound/internal/config"
	"github.com/kilimcininkoroglu/earbound/internal/tools"
	"github.com/kilimcininkoroglu/earbound/internal/version"
)

func newInitConfigCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:               "init-config [PATH]",
		Short:             "Write a commented default config file",
		Args:              cobra.MaximumNArgs(1),
		PersistentPreRunE: noSetup,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return a.initConfig(path, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func (a *app) initConfig(path string, force bool) error {
	if path == "" {
		p, err := config.GetDefaultConfigPath()
		if err != nil {
			return exitWith(ExitGeneralError, fmt.Errorf("cannot determine config path: %w", err))
		}
		path = p
	}

	if _, err := os.Stat(path); err == nil && !force {
		fmt.Fprintf(a.stderr, "Config file already exists: %s\n", path)
		fmt.Fprintln(a.stderr, "Use --force to overwrite it.")
		return exitWith(ExitGeneralError, nil)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return exitWith(ExitGeneralError, fmt.Errorf("creating config directory: %w", err))
	}
	if err := os.WriteFile(path, []byte(config.GenerateDefaultConfig()), 0644); err != nil {
		return exitWith(ExitGeneralError, fmt.Errorf("writing config file: %w", err))
	}

	fmt.Fprintf(a.stdout, "Created default config file: %s\n", path)
	fmt.Fprintln(a.stdout, "\nYou can customize your settings there.")
	return nil
}

func newVersionCmd(a *app) *cobra.Command {
	var asJSON, short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information and the detected downloader tools",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A broken config should not hide the version
			if err := a.setup(cmd, args); err != nil {
				a.cfg = config.DefaultConfig()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if short {
				fmt.Fprintln(a.stdout, version.Short())
				return nil
			}
			info := probeTools(cmd.Context(), a.cfg, version.Get())
			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(info); err != nil {
					return exitWith(ExitGeneralError, err)
				}
				return nil
			}
			fmt.Fprintln(a.stdout, info.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	cmd.Flags().BoolVar(&short, "short", false, "print only the version")
	return cmd
}

// probeTools adds the installed version of every external tool to info
func probeTools(ctx context.Context, cfg *config.Config, info version.Info) version.Info {
	if ctx == nil {
		ctx = context.Background()
	}
	locator := newLocator(cfg)
	prober := tools.NewVersionProber(cfg.Timeouts.Probe)

	for _, t := range []tools.Tool{tools.SpotDL, tools.YTDLP, tools.FFmpeg} {
		detected := "not found"
		if caps := prober.Probe(ctx, t, locator.Resolve(t)); caps.Known() {
			detected = caps.VersionString()
		} else if locator.Available(t) {
			detected = "unknown version"
		}
		info = info.WithTool(string(t), detected)
	}
	return info
}
