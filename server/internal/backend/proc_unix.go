//go:build unix

package backend

import (
	"os/exec"
	"syscall"
)

// setProcessGroup starts the child in its own process group and makes
// context cancellation kill the whole group, so interpreters that fork
// helpers do not leave them running after a timeout.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
