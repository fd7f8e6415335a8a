//go:build !windows

package supervise

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureProcAttr places the child in its own process group so the whole
// subtree can be signaled through the negative pgid later.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateTree kills the process group rooted at pid. Requires the process
// to have been spawned as a group leader.
func terminateTree(pid int) error {
	return unix.Kill(-pid, unix.SIGKILL)
}
