//go:build windows

package spawn

import (
	"os/exec"
	"time"
)

func setProcessGroup(cmd *exec.Cmd) {}

// terminateProcess has no graceful form on Windows; the worker is killed
// outright.
func terminateProcess(cmd *exec.Cmd, grace time.Duration) {
	_ = grace
	killProcess(cmd)
}

func killProcess(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}
