//go:build !windows

package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// setProcAttr starts the child in its own process group so the group
// can be signalled as a whole.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminate asks the process group to stop, waits up to grace for the
// leader to exit, then kills whatever is left of the group.
func terminate(p *os.Process, exited <-chan struct{}, grace time.Duration) error {
	pgid := p.Pid

	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		_ = p.Signal(syscall.SIGTERM)
	}

	select {
	case <-exited:
	case <-time.After(grace):
	}

	// Sub-children survive their parent; sweep the group regardless.
	if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		if kerr := p.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
			return kerr
		}
	}
	return nil
}
