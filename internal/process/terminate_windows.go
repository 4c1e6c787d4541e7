//go:build windows

package process

import (
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"
)

func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// terminate kills the process tree with taskkill, falling back to
// killing the direct child.
func terminate(p *os.Process, exited <-chan struct{}, grace time.Duration) error {
	kill := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(p.Pid))
	if err := kill.Run(); err != nil {
		if kerr := p.Kill(); kerr != nil {
			return kerr
		}
	}

	select {
	case <-exited:
	case <-time.After(grace):
	}
	return nil
}
