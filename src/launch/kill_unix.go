//go:build !windows

package launch

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// the target gets its own process group so helpers it forks can be
// signalled together
func setupProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

func killProcessGroup(cmd *exec.Cmd) error {
	pid := cmd.Process.Pid
	if pgid, err := unix.Getpgid(pid); err == nil && pgid == pid {
		if err := unix.Kill(-pgid, unix.SIGKILL); err == nil {
			return nil
		}
	}
	return cmd.Process.Kill()
}
