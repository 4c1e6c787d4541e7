package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/kilimcininkoroglu/earbound/internal/config"
	"github.com/kilimcininkoroglu/earbound/internal/hooks"
	"github.com/kilimcininkoroglu/earbound/internal/link"
	"github.com/kilimcininkoroglu/earbound/internal/metadata"
	"github.com/kilimcininkoroglu/earbound/internal/metrics"
	"github.com/kilimcininkoroglu/earbound/internal/process"
	"github.com/kilimcininkoroglu/earbound/internal/supervisor"
	"github.com/kilimcininkoroglu/earbound/internal/tools"
	"github.com/kilimcininkoroglu/earbound/internal/tui"
	"github.com/kilimcininkoroglu/earbound/internal/ui"
)

// session is everything one invocation needs around the supervisor
type session struct {
	sup     *supervisor.Supervisor
	hooks   *hooks.Manager
	metrics *metrics.Metrics
	server  *metrics.Server
}

// newLocator maps the configured tool paths onto a locator
func newLocator(cfg *config.Config) *tools.Locator {
	return tools.NewLocator(map[tools.Tool]string{
		tools.SpotDL: cfg.Tools.SpotDL,
		tools.YTDLP:  cfg.Tools.YTDLP,
		tools.FFmpeg: cfg.Tools.FFmpeg,
	})
}

func (a *app) newSession(confirmer supervisor.Confirmer) (*session, error) {
	cfg := a.cfg
	locator := newLocator(cfg)

	resolver := metadata.NewResolver(cfg.Timeouts.Metadata,
		&metadata.ToolSource{Binary: locator.Resolve(tools.YTDLP)},
		metadata.NewPlaylistSource(),
		metadata.NewPageSource(),
	)
	runner := process.NewRunner(
		process.WithBand(supervisor.RunBand),
		process.WithGrace(cfg.Timeouts.TerminateGrace),
		process.WithDrain(cfg.Timeouts.Drain),
	)

	opts := []supervisor.Option{
		supervisor.WithRunner(runner),
		supervisor.WithProber(tools.NewVersionProber(cfg.Timeouts.Probe)),
		supervisor.WithLocator(locator),
		supervisor.WithMetadata(resolver),
		supervisor.WithMetadataTimeout(cfg.Timeouts.Metadata),
		supervisor.WithAudio(supervisor.AudioOptions{
			Format:  cfg.Audio.Format,
			Bitrate: cfg.Audio.Bitrate,
			Threads: cfg.Audio.Threads,
		}),
	}
	if confirmer != nil {
		opts = append(opts, supervisor.WithConfirmer(confirmer))
	}

	s := &session{
		sup:     supervisor.New(opts...),
		hooks:   hooks.FromConfig(cfg.Hooks.OnComplete, cfg.Hooks.OnError, cfg.Hooks.Webhook),
		metrics: metrics.New(),
	}
	if cfg.Metrics.Addr != "" {
		s.server = metrics.NewServer(cfg.Metrics.Addr, s.metrics)
		if err := s.server.Start(); err != nil {
			return nil, err
		}
		log.WithField("addr", s.server.Addr()).Info("Serving metrics")
	}
	return s, nil
}

// observe feeds an event to the metrics and fires hooks on the outcome
func (s *session) observe(ev supervisor.Event) {
	s.metrics.Observe(ev)
	if ev.Kind == supervisor.EventOutcome && ev.Outcome != nil {
		// Hooks also run for cancelled requests, so they get a fresh context
		s.hooks.Notify(context.Background(), ev.RequestID, *ev.Outcome)
	}
}

func (s *session) close() {
	if s.server != nil {
		if err := s.server.Stop(); err != nil {
			log.WithError(err).Debug("Stopping metrics server")
		}
	}
}

// confirmer picks how duplicate prompts are answered outside the TUI:
// --yes or a non-interactive stdin means no prompt at all.
func (a *app) confirmer() supervisor.Confirmer {
	if a.yes || !isInteractive(a.stdin) {
		return nil
	}
	return newPromptConfirmer(a.stdin, a.stderr)
}

// baseDirectory returns the absolute download root
func (a *app) baseDirectory() (string, error) {
	dir := a.cfg.Output.Directory
	if dir == "" {
		dir = "."
	}
	return filepath.Abs(dir)
}

// remember writes the output directory back to the config file the
// settings came from, or to the default user config.
func (a *app) remember(dir string) error {
	path := a.cfg.Source()
	if path == "" {
		p, err := config.GetDefaultConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := config.RememberDirectory(path, dir); err != nil {
		return err
	}
	log.WithFields(log.Fields{"directory": dir, "config": path}).Info("Remembered output directory")
	return nil
}

// runSingle downloads one link
func (a *app) runSingle(ctx context.Context, text string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	baseDir, err := a.baseDirectory()
	if err != nil {
		return exitWith(ExitGeneralError, err)
	}
	if a.rememberDir {
		if err := a.remember(baseDir); err != nil {
			return exitWith(ExitGeneralError, fmt.Errorf("remembering directory: %w", err))
		}
	}

	if a.cfg.Output.TUI {
		return a.runTUI(ctx, cancel, text, baseDir)
	}

	sess, err := a.newSession(a.confirmer())
	if err != nil {
		return exitWith(ExitGeneralError, err)
	}
	defer sess.close()

	renderer, err := ui.NewRenderer(a.cfg.Output.ProgressStyle, a.stdout, !a.cfg.Output.Colors, a.verbose)
	if err != nil {
		return exitWith(ExitParseError, err)
	}
	defer renderer.Close()

	stop := onInterrupt(func(n int) {
		if n == 1 && sess.sup.Cancel() {
			fmt.Fprintln(a.stderr, "\nInterrupted, stopping download...")
			return
		}
		cancel()
	})
	defer stop()

	outcome, err := sess.sup.Run(ctx, supervisor.Request{Link: text, BaseDirectory: baseDir}, func(ev supervisor.Event) {
		sess.observe(ev)
		renderer.Handle(ev)
	})
	if err != nil {
		return exitWith(exitCodeForError(err), err)
	}
	return outcomeError(outcome)
}

// runTUI downloads one link inside the interactive view
func (a *app) runTUI(ctx context.Context, cancel context.CancelFunc, text, baseDir string) error {
	var sup *supervisor.Supervisor
	view := tui.NewRunner(text, func() {
		if sup != nil {
			sup.Cancel()
		}
	})

	var confirmer supervisor.Confirmer = view
	if a.yes {
		confirmer = nil
	}
	sess, err := a.newSession(confirmer)
	if err != nil {
		return exitWith(ExitGeneralError, err)
	}
	defer sess.close()
	sup = sess.sup

	stop := onInterrupt(func(n int) {
		if n == 1 && sup.Cancel() {
			return
		}
		cancel()
		view.Stop()
	})
	defer stop()

	view.Start()
	outcome, err := sup.Run(ctx, supervisor.Request{Link: text, BaseDirectory: baseDir}, func(ev supervisor.Event) {
		sess.observe(ev)
		view.Send(ev)
	})
	if err != nil {
		view.Stop()
		_ = view.Wait()
		return exitWith(exitCodeForError(err), err)
	}
	if werr := view.Wait(); werr != nil {
		log.WithError(werr).Debug("Terminal UI exited with error")
	}
	ui.RenderOutcome(a.stdout, outcome, !a.cfg.Output.Colors)
	return outcomeError(outcome)
}

// outcomeError turns a finished request into the command's result. The
// outcome line has been printed already, so only the code travels.
func outcomeError(o supervisor.Outcome) error {
	code := exitCodeFor(o)
	if code == ExitSuccess {
		return nil
	}
	return exitWith(code, nil)
}

// exitCodeFor maps an outcome to the process exit code
func exitCodeFor(o supervisor.Outcome) int {
	switch o.Kind {
	case supervisor.Completed, supervisor.CompletedWithWarnings:
		return ExitSuccess
	case supervisor.Cancelled:
		if errors.Is(o.Err, supervisor.ErrDeclined) {
			return ExitSuccess
		}
		return ExitInterrupted
	}
	switch {
	case errors.Is(o.Err, link.ErrInvalidLink):
		return ExitParseError
	case errors.Is(o.Err, process.ErrNotFound):
		return ExitToolMissing
	case errors.Is(o.Err, supervisor.ErrNoOutputProduced):
		return ExitNoOutput
	default:
		return ExitGeneralError
	}
}

func exitCodeForError(err error) int {
	if errors.Is(err, supervisor.ErrBusy) {
		return ExitBusy
	}
	return ExitGeneralError
}

// onInterrupt calls fn with a running count for every SIGINT or SIGTERM
// until the returned stop function is called.
func onInterrupt(fn func(n int)) (stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		n := 0
		for {
			select {
			case <-sigs:
				n++
				fn(n)
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

// joinArgs rebuilds pasted text that the shell split into words
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
