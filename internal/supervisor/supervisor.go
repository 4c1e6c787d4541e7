// Package supervisor orchestrates one download at a time: it classifies
// the link, picks the output directory, checks for duplicates, runs the
// primary and fallback commands and judges the result from what landed
// on disk. Callers only see a stream of events.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kilimcininkoroglu/earbound/internal/link"
	"github.com/kilimcininkoroglu/earbound/internal/organize"
	"github.com/kilimcininkoroglu/earbound/internal/process"
	"github.com/kilimcininkoroglu/earbound/internal/tools"
)

// Overall progress milestones. Tool output is scaled into RunBand.
const (
	progressResolved  = 10
	progressChecked   = 20
	progressFinalized = 100
)

// RunBand is the slice of overall progress a downloader run covers
var RunBand = process.Band{Low: 20, High: 90}

const eventBuffer = 256

// mtimeSlack allows for file timestamps that lag the wall clock
const mtimeSlack = 2 * time.Second

// ProcessRunner runs one external command
type ProcessRunner interface {
	Run(ctx context.Context, argv []string, sinks process.Sinks, flag *process.CancelFlag) (process.ExitStatus, error)
}

// Metadata answers best-effort title queries
type Metadata interface {
	Title(ctx context.Context, rawLink string) (string, error)
	PlaylistName(ctx context.Context, rawLink string) (string, error)
}

// AudioOptions are passed through to the downloader
type AudioOptions struct {
	Format  string
	Bitrate string
	Threads int
}

type active struct {
	id     string
	flag   *process.CancelFlag
	handle *process.RunHandle
}

// Supervisor runs at most one request at a time
type Supervisor struct {
	runner          ProcessRunner
	prober          tools.Prober
	locator         *tools.Locator
	meta            Metadata
	confirmer       Confirmer
	audio           AudioOptions
	metadataTimeout time.Duration

	mu      sync.Mutex
	current *active
}

// Option configures a Supervisor
type Option func(*Supervisor)

// WithRunner sets the process runner
func WithRunner(r ProcessRunner) Option {
	return func(s *Supervisor) { s.runner = r }
}

// WithProber sets how tool versions are detected
func WithProber(p tools.Prober) Option {
	return func(s *Supervisor) { s.prober = p }
}

// WithLocator sets how tool binaries are found
func WithLocator(l *tools.Locator) Option {
	return func(s *Supervisor) { s.locator = l }
}

// WithMetadata sets the title and playlist name lookup
func WithMetadata(m Metadata) Option {
	return func(s *Supervisor) { s.meta = m }
}

// WithConfirmer sets who answers duplicate prompts. Without one,
// likely duplicates are logged and downloaded anyway.
func WithConfirmer(c Confirmer) Option {
	return func(s *Supervisor) { s.confirmer = c }
}

// WithAudio sets output format options
func WithAudio(a AudioOptions) Option {
	return func(s *Supervisor) { s.audio = a }
}

// WithMetadataTimeout bounds playlist name and title lookups
func WithMetadataTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.metadataTimeout = d
		}
	}
}

// New creates a Supervisor
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		metadataTimeout: organize.DefaultTitleTimeout,
		audio:           AudioOptions{Format: tools.DefaultFormat, Bitrate: tools.DefaultBitrate},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.runner == nil {
		s.runner = process.NewRunner(process.WithBand(RunBand))
	}
	if s.prober == nil {
		s.prober = tools.NewVersionProber(tools.DefaultProbeTimeout)
	}
	if s.locator == nil {
		s.locator = tools.NewLocator(nil)
	}
	return s
}

// Submit starts a request in the background. The returned channel
// carries every event of the request and is closed after the outcome;
// callers must drain it. While a request is in flight Submit fails with
// ErrBusy and nothing is started.
func (s *Supervisor) Submit(ctx context.Context, req Request) (<-chan Event, error) {
	s.mu.Lock()
	if s.current != nil {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	a := &active{id: "dl-" + uuid.NewString(), flag: process.NewCancelFlag()}
	s.current = a
	s.mu.Unlock()

	events := make(chan Event, eventBuffer)
	go func() {
		defer close(events)
		r := &request{s: s, a: a, req: req, events: events, started: time.Now()}
		outcome := r.execute(ctx)
		outcome.Duration = time.Since(r.started)

		// Free the slot before announcing the outcome so the caller can
		// submit again as soon as it sees it.
		s.release(a)
		r.emit(Event{Kind: EventOutcome, Outcome: &outcome})
	}()
	return events, nil
}

// Run submits a request and blocks until it finishes, passing every
// event to fn.
func (s *Supervisor) Run(ctx context.Context, req Request, fn func(Event)) (Outcome, error) {
	events, err := s.Submit(ctx, req)
	if err != nil {
		return Outcome{}, err
	}
	var out Outcome
	for ev := range events {
		if fn != nil {
			fn(ev)
		}
		if ev.Kind == EventOutcome && ev.Outcome != nil {
			out = *ev.Outcome
		}
	}
	return out, nil
}

// Cancel asks the in-flight request to stop. It reports whether there
// was one.
func (s *Supervisor) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return false
	}
	s.current.flag.Set()
	return true
}

// Busy reports whether a request is in flight
func (s *Supervisor) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Handle returns the live process of the in-flight request, if any
func (s *Supervisor) Handle() (process.RunHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.handle == nil {
		return process.RunHandle{}, false
	}
	return *s.current.handle, true
}

func (s *Supervisor) setHandle(a *active, h *process.RunHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == a {
		a.handle = h
	}
}

func (s *Supervisor) release(a *active) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == a {
		s.current = nil
	}
}

// request is the state of one in-flight download
type request struct {
	s       *Supervisor
	a       *active
	req     Request
	events  chan<- Event
	started time.Time
	log     *log.Entry

	warnings  int
	errorLine int
}

func (r *request) emit(ev Event) {
	ev.RequestID = r.a.id
	ev.Time = time.Now()
	r.events <- ev
}

func (r *request) state(st State) {
	r.log.WithField("state", st).Debug("state change")
	r.emit(Event{Kind: EventState, State: st})
}

func (r *request) progress(p float64) {
	r.emit(Event{Kind: EventProgress, Progress: p})
}

func (r *request) logf(level process.Level, format string, args ...any) {
	r.emit(Event{Kind: EventLog, Level: level, Line: fmt.Sprintf(format, args...)})
}

func (r *request) cancelled(ctx context.Context) bool {
	return r.a.flag.IsSet() || ctx.Err() != nil
}

// watch returns a ctx that is also done once Cancel sets the flag, so
// lookups and prompts give up with the request.
func (r *request) watch(ctx context.Context) (context.Context, context.CancelFunc) {
	wctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-r.a.flag.Done():
			cancel()
		case <-wctx.Done():
		}
	}()
	return wctx, cancel
}

func (r *request) execute(ctx context.Context) Outcome {
	r.log = log.WithField("request", r.a.id)
	out := Outcome{Link: r.req.Link}

	wctx, stop := r.watch(ctx)
	defer stop()

	r.state(StateClassifying)
	rawLink := link.Extract(r.req.Link)
	out.Link = rawLink
	c, err := link.Classify(rawLink)
	if err != nil {
		return r.fail(out, err, err.Error())
	}
	out.Classification = c
	r.logf(process.LevelInfo, "Detected %s %s link", c.Provider, c.Kind)

	if r.cancelled(ctx) {
		return r.cancel(out, "cancelled before start")
	}

	r.state(StateResolving)
	base := r.req.BaseDirectory
	if base == "" {
		base = "."
	}
	tool := tools.ForProvider(c.Provider)
	binary := r.s.locator.Resolve(tool)
	caps, playlistName := r.prepare(wctx, c, tool, binary, rawLink)

	target, err := organize.ResolveTarget(base, c, playlistName)
	if err != nil {
		r.logf(process.LevelWarning, "Could not create %s, saving to %s", filepath.Base(organize.TargetPath(base, c, playlistName)), base)
	}
	out.Directory = target.Directory
	r.logf(process.LevelInfo, "Saving to %s", target.Directory)
	r.progress(progressResolved)

	if r.cancelled(ctx) {
		return r.cancel(out, "cancelled before start")
	}

	r.state(StateDuplicateCheck)
	if r.duplicateDeclined(wctx, rawLink, target.Directory) {
		if r.cancelled(ctx) {
			return r.cancel(out, "cancelled")
		}
		out.Err = ErrDeclined
		return r.cancel(out, "skipped likely duplicate")
	}
	r.progress(progressChecked)

	res := r.runStrategies(ctx, c, tools.Spec{
		Link:           rawLink,
		Directory:      target.Directory,
		Classification: c,
		Binary:         binary,
		FFmpeg:         r.s.locator.FFmpegOverride(),
		Format:         r.s.audio.Format,
		Bitrate:        r.s.audio.Bitrate,
		Threads:        r.s.audio.Threads,
		Caps:           caps,
	}, &out)
	if res.done != nil {
		return *res.done
	}

	r.state(StateFinalizing)
	return r.finalize(out, res)
}

// prepare probes the tool version and, for YouTube playlists, looks up
// the playlist name. Both are bounded and never fail the request.
func (r *request) prepare(ctx context.Context, c link.Classification, tool tools.Tool, binary, rawLink string) (tools.Capabilities, string) {
	var caps tools.Capabilities
	var name string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		caps = r.s.prober.Probe(gctx, tool, binary)
		return nil
	})
	if c.Provider == link.ProviderYouTube && c.Kind == link.KindPlaylist && r.s.meta != nil {
		g.Go(func() error {
			mctx, cancel := context.WithTimeout(gctx, r.s.metadataTimeout)
			defer cancel()
			n, err := r.s.meta.PlaylistName(mctx, rawLink)
			if err != nil {
				r.log.WithError(err).Debug("playlist name lookup failed")
				return nil
			}
			name = n
			return nil
		})
	}
	_ = g.Wait()

	if caps.Known() {
		r.logf(process.LevelInfo, "Using %s %s", tool, caps.VersionString())
	} else {
		r.logf(process.LevelInfo, "Could not detect %s version, using basic options", tool)
	}
	return caps, name
}

func (r *request) duplicateDeclined(ctx context.Context, rawLink, dir string) bool {
	d := &organize.DuplicateDetector{Timeout: r.s.metadataTimeout}
	if r.s.meta != nil {
		d.Titles = r.s.meta
	}
	if !d.MightBeDuplicate(ctx, rawLink, dir) {
		return false
	}

	r.logf(process.LevelWarning, "Files that look like this download already exist in %s", dir)
	if r.s.confirmer == nil {
		return false
	}
	ok := r.s.confirmer.ConfirmDuplicate(ctx, DuplicateNotice{RequestID: r.a.id, Link: rawLink, Directory: dir})
	return !ok
}

// runResult is what the strategy loop leaves for finalizing
type runResult struct {
	status process.ExitStatus
	ran    bool
	err    error    // last launch error, if no attempt ran
	done   *Outcome // set when the request ended early
}

// runStrategies tries each command strategy in order until one exits
// cleanly.
func (r *request) runStrategies(ctx context.Context, c link.Classification, spec tools.Spec, out *Outcome) runResult {
	var res runResult

	for i, strategy := range tools.Strategies(c.Provider) {
		if r.cancelled(ctx) {
			o := r.cancel(*out, "cancelled")
			res.done = &o
			return res
		}

		if i == 0 {
			r.state(StateRunningPrimary)
		} else {
			r.state(StateRunningFallback)
			out.UsedFallback = true
			r.logf(process.LevelInfo, "Retrying with a basic %s command", spec.Binary)
			r.progress(progressChecked)
		}

		argv := strategy.Build(spec)
		out.Strategy = strategy.Name
		r.log.WithFields(log.Fields{"strategy": strategy.Name, "argv": argv}).Debug("running downloader")

		st, err := r.s.runner.Run(ctx, argv, r.sinks(), r.a.flag)
		r.s.setHandle(r.a, nil)

		switch {
		case errors.Is(err, process.ErrCancelled):
			o := r.cancel(*out, "cancelled")
			res.done = &o
			return res

		case errors.Is(err, process.ErrNotFound):
			tool := tools.ForProvider(c.Provider)
			o := r.fail(*out, err, fmt.Sprintf("%s not found: %s", tool, tools.InstallHint(tool)))
			res.done = &o
			return res

		case err != nil:
			r.logf(process.LevelError, "Could not start %s: %v", spec.Binary, err)
			if !res.ran {
				res.err = err
			}
			continue
		}

		res.ran = true
		res.status = st
		res.err = nil
		out.ExitCode = st.Code
		if st.Success() {
			return res
		}
		r.logf(process.LevelWarning, "%s exited with code %d", spec.Binary, st.Code)
	}
	return res
}

func (r *request) sinks() process.Sinks {
	return process.Sinks{
		Started: func(h process.RunHandle) {
			r.s.setHandle(r.a, &h)
		},
		Line: func(line string) {
			level := process.ClassifyLine(line)
			switch level {
			case process.LevelWarning:
				r.warnings++
			case process.LevelError:
				r.errorLine++
			}
			r.emit(Event{Kind: EventLog, Level: level, Line: line})
		},
		Progress: func(s process.Sample) {
			r.progress(s.Percent)
		},
	}
}

func (r *request) finalize(out Outcome, res runResult) Outcome {
	out.Warnings = r.warnings
	out.Errors = r.errorLine

	files, err := organize.ListAudio(out.Directory)
	if err != nil {
		r.log.WithError(err).Warn("scanning target directory")
	}
	out.Files = organize.ModifiedSince(files, r.started.Add(-mtimeSlack))

	switch {
	case !res.ran:
		err := res.err
		if err == nil {
			err = ErrNoOutputProduced
		}
		return r.fail(out, err, fmt.Sprintf("could not start downloader: %v", err))

	case res.status.Success():
		out.Kind = Completed
		r.progress(progressFinalized)
		r.logf(process.LevelInfo, "Download completed (%d new files)", len(out.Files))

	case len(files) > 0:
		out.Kind = CompletedWithWarnings
		out.Err = ErrPartialFailure
		out.Reason = fmt.Sprintf("exit code %d", res.status.Code)
		r.progress(progressFinalized)
		r.logf(process.LevelWarning, "Download finished with warnings (exit code %d)", res.status.Code)

	default:
		return r.fail(out, ErrNoOutputProduced, ErrNoOutputProduced.Error())
	}

	r.log.WithFields(log.Fields{"outcome": out.Kind, "dir": out.Directory, "files": len(out.Files)}).Debug("request finished")
	return out
}

func (r *request) fail(out Outcome, err error, reason string) Outcome {
	out.Kind = Failed
	out.Err = err
	out.Reason = reason
	out.Warnings = r.warnings
	out.Errors = r.errorLine
	r.logf(process.LevelError, "Download failed: %s", reason)
	r.log.WithError(err).Warn("request failed")
	return out
}

func (r *request) cancel(out Outcome, reason string) Outcome {
	out.Kind = Cancelled
	if out.Err == nil {
		out.Err = process.ErrCancelled
	}
	out.Reason = reason
	out.Warnings = r.warnings
	out.Errors = r.errorLine
	r.logf(process.LevelWarning, "Download %s", reason)
	r.log.Debug("request cancelled")
	return out
}
