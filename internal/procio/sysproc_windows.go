//go:build windows

package procio

import (
	"fmt"
	"os/exec"
	"syscall"

	winapi "golang.org/x/sys/windows"
)

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: winapi.CREATE_NEW_PROCESS_GROUP}
}

// killProcessGroup asks taskkill to tear down pid's whole process tree,
// mirroring the unix process-group signal on a platform with no signal
// groups.
func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = exec.Command("taskkill", "/PID", fmt.Sprint(pid), "/T", "/F").Run()
}
