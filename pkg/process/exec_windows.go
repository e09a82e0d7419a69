//go:build windows

package process

import (
	"os/exec"
	"strconv"
	"syscall"
)

// ScriptExtension is appended to engine helper scripts (Setup, RunUAT)
const ScriptExtension = ".bat"

func configureCommand(cmd *exec.Cmd, path string, spec Spec) {
	attr := &syscall.SysProcAttr{}
	if spec.CommandLine != "" {
		attr.CmdLine = syscall.EscapeArg(path) + " " + spec.CommandLine
	}
	cmd.SysProcAttr = attr
}

func killTree(pid int) error {
	return exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid)).Run()
}

// ShutdownCommand returns the command that powers the machine off after a short delay
func ShutdownCommand() (string, []string) {
	return "shutdown", []string{"/s", "/t", "5"}
}
