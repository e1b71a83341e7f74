//go:build unix

package transcode

import (
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// configureTermination puts the child in its own process group so SIGTERM
// reaches ffmpeg and anything it spawned. exec escalates to SIGKILL once
// grace has elapsed.
func configureTermination(cmd *exec.Cmd, grace time.Duration) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return unix.Kill(-cmd.Process.Pid, unix.SIGTERM)
	}
	cmd.WaitDelay = grace
}

// killGroup reaps stragglers left in the group after the leader exited.
func killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
}
