//go:build !unix

package transcode

import (
	"os/exec"
	"time"
)

func configureTermination(cmd *exec.Cmd, grace time.Duration) {
	cmd.WaitDelay = grace
}

func killGroup(*exec.Cmd) {}
