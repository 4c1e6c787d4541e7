package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/kilimcininkoroglu/earbound/internal/supervisor"
)

// isInteractive reports whether r is a terminal a user can answer from
func isInteractive(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// promptConfirmer asks on the terminal before downloading into a
// directory that seems to hold the same files already.
type promptConfirmer struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer

	// pending carries a read that outlived an earlier prompt
	pending chan string
}

func newPromptConfirmer(in io.Reader, out io.Writer) *promptConfirmer {
	return &promptConfirmer{in: bufio.NewReader(in), out: out}
}

// ConfirmDuplicate implements supervisor.Confirmer. Only y or yes
// accepts; anything else, EOF or a done ctx declines.
func (p *promptConfirmer) ConfirmDuplicate(ctx context.Context, n supervisor.DuplicateNotice) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\nThis download looks like it is already in %s\n", n.Directory)
	fmt.Fprint(p.out, "Download anyway? [y/N] ")

	if p.pending == nil {
		p.pending = make(chan string, 1)
		go func(ch chan<- string) {
			line, _ := p.in.ReadString('\n')
			ch <- line
		}(p.pending)
	}

	select {
	case line := <-p.pending:
		p.pending = nil
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return false
	}
}
