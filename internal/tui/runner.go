package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kilimcininkoroglu/earbound/internal/supervisor"
)

// Runner hosts the Bubbletea program for one download and answers the
// supervisor's duplicate prompts through it.
type Runner struct {
	program *tea.Program
	done    chan struct{}

	mu  sync.Mutex
	err error
}

// NewRunner creates a runner. onCancel is called when the user asks to
// stop the download.
func NewRunner(rawLink string, onCancel func(), opts ...tea.ProgramOption) *Runner {
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	return &Runner{
		program: tea.NewProgram(NewModel(rawLink, onCancel), opts...),
		done:    make(chan struct{}),
	}
}

// Start runs the program in a goroutine
func (r *Runner) Start() {
	go func() {
		defer close(r.done)
		_, err := r.program.Run()
		r.mu.Lock()
		r.err = err
		r.mu.Unlock()
	}()
}

// Send forwards a supervisor event to the program
func (r *Runner) Send(ev supervisor.Event) {
	select {
	case <-r.done:
	default:
		r.program.Send(EventMsg{Event: ev})
	}
}

// ConfirmDuplicate shows the duplicate prompt and waits for the answer.
// A closed program or a done ctx counts as "no".
func (r *Runner) ConfirmDuplicate(ctx context.Context, n supervisor.DuplicateNotice) bool {
	reply := make(chan bool, 1)
	select {
	case <-r.done:
		return false
	default:
	}
	r.program.Send(PromptMsg{Notice: n, Reply: reply})

	select {
	case ok := <-reply:
		return ok
	case <-ctx.Done():
		return false
	case <-r.done:
		return false
	}
}

// Wait blocks until the user closes the program
func (r *Runner) Wait() error {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Stop quits the program
func (r *Runner) Stop() {
	r.program.Quit()
}
