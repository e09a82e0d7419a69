//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// ScriptExtension is appended to engine helper scripts (Setup, RunUAT)
const ScriptExtension = ".sh"

func configureCommand(cmd *exec.Cmd, _ string, _ Spec) {
	// Own process group so the whole tree can be signalled
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killTree(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}

// ShutdownCommand returns the command that powers the machine off after a short delay
func ShutdownCommand() (string, []string) {
	return "sh", []string{"-c", "sleep 5 && shutdown -h now"}
}
