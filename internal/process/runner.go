// Package process runs one external downloader at a time, streaming its
// merged output as lines and stopping it on request.
package process

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Defaults for Runner timing
const (
	DefaultGrace = 3 * time.Second
	DefaultDrain = 2 * time.Second
)

// RunHandle describes the live process of one run
type RunHandle struct {
	PID       int
	Args      []string
	StartedAt time.Time
}

// ExitStatus is how a process ended. A non-zero Code is not an error
// here; callers decide what it means.
type ExitStatus struct {
	Code     int
	Duration time.Duration
}

// Success reports whether the process exited with code 0
func (s ExitStatus) Success() bool {
	return s.Code == 0
}

// Sinks receive what a run produces. Every field is optional.
type Sinks struct {
	Started  func(RunHandle)
	Line     func(string)
	Progress func(Sample)
}

// Runner launches external commands. A Runner keeps no state between
// runs and may be shared.
type Runner struct {
	band  Band
	grace time.Duration
	drain time.Duration
	dir   string
	env   []string
}

// Option configures a Runner
type Option func(*Runner)

// WithBand sets the range raw progress is scaled into
func WithBand(b Band) Option {
	return func(r *Runner) {
		r.band = b
	}
}

// WithGrace sets how long a terminated process gets before it is killed
func WithGrace(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.grace = d
		}
	}
}

// WithDrain sets how long output is still read after the process exits
func WithDrain(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.drain = d
		}
	}
}

// WithDir sets the working directory of launched processes
func WithDir(dir string) Option {
	return func(r *Runner) {
		r.dir = dir
	}
}

// WithEnv appends variables to the inherited environment
func WithEnv(env ...string) Option {
	return func(r *Runner) {
		r.env = append(r.env, env...)
	}
}

// NewRunner creates a Runner
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		band:  FullBand,
		grace: DefaultGrace,
		drain: DefaultDrain,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes argv, forwarding each output line and any progress found
// in it. The flag is checked before every line; once it is set, or ctx
// is done, the whole process group is terminated and ErrCancelled is
// returned. Launch failures are returned as *Error.
func (r *Runner) Run(ctx context.Context, argv []string, sinks Sinks, flag *CancelFlag) (ExitStatus, error) {
	if len(argv) == 0 {
		return ExitStatus{}, &Error{Kind: KindSpawnFailed, Err: errors.New("empty command")}
	}
	if flag.IsSet() || ctx.Err() != nil {
		return ExitStatus{}, ErrCancelled
	}

	path, err := exec.LookPath(argv[0])
	if err != nil {
		return ExitStatus{}, &Error{Kind: KindNotFound, Binary: argv[0], Err: err}
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return ExitStatus{}, &Error{Kind: KindSpawnFailed, Binary: argv[0], Err: err}
	}

	cmd := exec.Command(path, argv[1:]...)
	cmd.Stdout = pw
	cmd.Stderr = pw
	cmd.Dir = r.dir
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}
	setProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		kind := KindSpawnFailed
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			kind = KindNotFound
		}
		return ExitStatus{}, &Error{Kind: kind, Binary: argv[0], Err: err}
	}
	// The child holds its own copy of the write end.
	pw.Close()

	handle := RunHandle{PID: cmd.Process.Pid, Args: append([]string(nil), argv...), StartedAt: time.Now()}
	entry := log.WithFields(log.Fields{"pid": handle.PID, "cmd": argv[0]})
	entry.Debug("process started")
	if sinks.Started != nil {
		sinks.Started(handle)
	}

	var waitErr error
	exited := make(chan struct{})
	go func() {
		waitErr = cmd.Wait()
		close(exited)
	}()

	lines := make(chan string, 64)
	stop := make(chan struct{})
	g := &errgroup.Group{}
	g.Go(func() error {
		return readLines(pr, lines, stop)
	})

	shutdown := func() {
		close(stop)
		pr.Close()
		if err := g.Wait(); err != nil {
			entry.WithError(err).Debug("output reader stopped")
		}
	}

	exitedCh := exited
	var drain <-chan time.Time
	for lines != nil || exitedCh != nil {
		if flag.IsSet() {
			return r.abort(cmd.Process, exited, handle, shutdown, entry)
		}

		select {
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			r.deliver(line, sinks, entry)

		case <-exitedCh:
			exitedCh = nil
			// Grandchildren may still hold the pipe open.
			drain = time.After(r.drain)

		case <-drain:
			drain = nil
			pr.Close()

		case <-flag.Done():
			// Handled at the top of the loop.

		case <-ctx.Done():
			return r.abort(cmd.Process, exited, handle, shutdown, entry)
		}
	}
	shutdown()

	status := ExitStatus{Code: 0, Duration: time.Since(handle.StartedAt)}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			status.Code = exitErr.ExitCode()
		} else {
			status.Code = -1
		}
	}
	entry.WithField("code", status.Code).Debug("process exited")
	return status, nil
}

func (r *Runner) deliver(line string, sinks Sinks, entry *log.Entry) {
	entry.Debug(line)
	if sinks.Line != nil {
		sinks.Line(line)
	}
	if sinks.Progress == nil {
		return
	}
	if raw, ok := ParseProgress(line); ok {
		sinks.Progress(Sample{Percent: r.band.Scale(raw), Raw: raw, Line: line})
	}
}

func (r *Runner) abort(p *os.Process, exited <-chan struct{}, handle RunHandle, shutdown func(), entry *log.Entry) (ExitStatus, error) {
	entry.Debug("cancelling process")
	if err := terminate(p, exited, r.grace); err != nil {
		entry.WithError(err).Warn("terminating process")
	}

	select {
	case <-exited:
	case <-time.After(r.grace):
		entry.Warn("process did not exit after kill")
	}
	shutdown()

	return ExitStatus{Code: -1, Duration: time.Since(handle.StartedAt)}, ErrCancelled
}
