package launch

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

func setupProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= windows.CREATE_NEW_PROCESS_GROUP
}

// descendants are killed by the caller, windows has no group signal
func killProcessGroup(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
