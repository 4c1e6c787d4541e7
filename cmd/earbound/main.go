// Earbound - audio downloads from Spotify and YouTube links
// Hands the actual retrieval to spotdl and yt-dlp and supervises them
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilimcininkoroglu/earbound/internal/config"
	"github.com/kilimcininkoroglu/earbound/internal/logging"
	"github.com/kilimcininkoroglu/earbound/internal/version"
)

// Exit codes
const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitParseError   = 2
	ExitToolMissing  = 3
	ExitNoOutput     = 4
	ExitInterrupted  = 8
	ExitBusy         = 9
)

// exitError carries an exit code out of a cobra RunE. A nil err means
// the failure was already reported to the user.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func exitWith(code int, err error) error {
	return &exitError{code: code, err: err}
}

// app holds the parsed flags and what the pre-run step built from them
type app struct {
	configFile  string
	outputDir   string
	ffmpeg      string
	progress    string
	tui         bool
	yes         bool
	noColor     bool
	verbose     bool
	quiet       bool
	onComplete  string
	onError     string
	webhook     string
	metricsAddr string
	rememberDir bool

	cfg     *config.Config
	logFile io.Closer

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newApp() *app {
	return &app{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
}

func main() {
	os.Exit(execute(newApp(), os.Args[1:]))
}

// execute runs the command tree and maps its error to an exit code
func execute(a *app, args []string) int {
	root := newRootCmd(a)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	err := root.Execute()
	a.close()

	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(a.stderr, "Error: %v\n", ee.err)
		}
		return ee.code
	}
	// Anything else comes from cobra's own flag and argument checks
	fmt.Fprintf(a.stderr, "Error: %v\n", err)
	fmt.Fprintln(a.stderr, "Run 'earbound --help' for usage.")
	return ExitParseError
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:     "earbound [flags] LINK",
		Short:   "Download audio from Spotify and YouTube links",
		Version: version.Version,
		Long: `Earbound downloads audio from a Spotify or YouTube link.

Spotify links are handed to spotdl and YouTube links to yt-dlp. Files are
sorted into a folder per playlist or album under the output directory.
If the preferred command fails, a simpler one is tried once before giving
up. Text around the link is ignored, so a pasted share message works too.`,
		Example: `  earbound https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC
  earbound -P ~/Music "https://www.youtube.com/playlist?list=PL123"
  earbound batch links.txt`,
		Args:              cobra.MinimumNArgs(1),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSingle(cmd.Context(), joinArgs(args))
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	f := root.PersistentFlags()
	f.StringVarP(&a.outputDir, "output-dir", "P", "", "base download directory")
	f.StringVar(&a.configFile, "config", "", "use this config file")
	f.StringVar(&a.ffmpeg, "ffmpeg", "", "codec binary passed to the downloaders")
	f.StringVar(&a.progress, "progress", "", "progress style: bar, minimal, json, none")
	f.BoolVar(&a.tui, "tui", false, "use the interactive terminal UI")
	f.BoolVarP(&a.yes, "yes", "y", false, "download even if the files seem to exist already")
	f.BoolVar(&a.noColor, "no-color", false, "disable colored output")
	f.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	f.BoolVarP(&a.quiet, "quiet", "q", false, "only print the result")
	f.StringVar(&a.onComplete, "on-complete", "", "command to run after a successful download")
	f.StringVar(&a.onError, "on-error", "", "command to run after a failed download")
	f.StringVar(&a.webhook, "webhook", "", "URL receiving a JSON POST after each download")
	f.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	f.BoolVar(&a.rememberDir, "remember-dir", false, "save the output directory to the config file")

	root.AddCommand(newBatchCmd(a), newInitConfigCmd(a), newVersionCmd(a))
	return root
}

// setup loads the configuration, lays the flags over it and configures
// logging. It runs before every command that needs a config.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return exitWith(ExitParseError, fmt.Errorf("loading config: %w", err))
	}
	a.applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return exitWith(ExitParseError, fmt.Errorf("invalid config: %w", err))
	}

	closer, err := logging.Setup(cfg.Logging, logging.Options{
		Verbose: a.verbose,
		Quiet:   a.quiet,
		NoColor: !cfg.Output.Colors,
	})
	if err != nil {
		return exitWith(ExitParseError, err)
	}
	a.logFile = closer
	a.cfg = cfg
	return nil
}

func (a *app) loadConfig() (*config.Config, error) {
	if a.configFile == "" {
		return config.Load()
	}
	cfg := config.DefaultConfig()
	if err := cfg.LoadFile(a.configFile); err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// applyFlags overrides config values with the flags that were given
func (a *app) applyFlags(cfg *config.Config) {
	if a.outputDir != "" {
		cfg.Output.Directory = a.outputDir
	}
	if a.ffmpeg != "" {
		cfg.Tools.FFmpeg = a.ffmpeg
	}
	if a.progress != "" {
		cfg.Output.ProgressStyle = a.progress
	}
	if a.quiet {
		cfg.Output.ProgressStyle = config.ProgressNone
	}
	if a.tui {
		cfg.Output.TUI = true
	}
	if a.noColor {
		cfg.Output.Colors = false
	}
	if a.onComplete != "" {
		cfg.Hooks.OnComplete = a.onComplete
	}
	if a.onError != "" {
		cfg.Hooks.OnError = a.onError
	}
	if a.webhook != "" {
		cfg.Hooks.Webhook = a.webhook
	}
	if a.metricsAddr != "" {
		cfg.Metrics.Addr = a.metricsAddr
	}
}

func (a *app) close() {
	if a.logFile != nil {
		_ = a.logFile.Close()
		a.logFile = nil
	}
}

// noSetup replaces the config pre-run for commands that must work even
// with a broken config file.
func noSetup(*cobra.Command, []string) error { return nil }
