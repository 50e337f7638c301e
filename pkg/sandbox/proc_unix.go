//go:build unix

package sandbox

import (
	"os/exec"
	"syscall"
	"time"
)

// configureProcess puts the command in its own process group so a timeout
// kills the shell together with everything it spawned.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = time.Second
}
