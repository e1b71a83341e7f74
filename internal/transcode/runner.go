package transcode

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"mixtape/internal/logging"
)

// maxStatusLine caps a single stderr line handed to onLine.
const maxStatusLine = 1024 * 1024

// Invocation is one external command.
type Invocation struct {
	Binary string
	Args   []string
	// Dir is the process working directory; empty inherits ours.
	Dir string
}

// String renders the invocation for logs and diagnostics.
func (i Invocation) String() string {
	return strings.TrimSpace(i.Binary + " " + strings.Join(i.Args, " "))
}

// Runner executes an invocation, feeding every status line to onLine. It
// returns nil on exit 0, an *ExitError on a non-zero exit, or the context
// error when ctx ended the run.
type Runner interface {
	Run(ctx context.Context, inv Invocation, onLine func(string)) error
}

// ExitError reports a non-zero process exit.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode extracts the process exit code from err, or -1.
func ExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}

// ExecRunner runs invocations as child processes. On cancellation the child
// is asked to terminate and is killed if it is still running after Grace.
type ExecRunner struct {
	Grace  time.Duration
	logger *zap.Logger
}

// NewExecRunner builds a runner with the given termination grace period.
func NewExecRunner(grace time.Duration, logger *zap.Logger) *ExecRunner {
	if grace <= 0 {
		grace = 5 * time.Second
	}
	return &ExecRunner{Grace: grace, logger: logging.NewComponentLogger(logger, "ffmpeg")}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, inv.Binary, inv.Args...)
	cmd.Dir = inv.Dir
	configureTermination(cmd, r.Grace)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	r.logger.Debug("executing ffmpeg",
		zap.String("command", inv.String()),
		zap.String("dir", inv.Dir),
	)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", inv.Binary, err)
	}

	// exec only escalates against the leader; stragglers in the group still
	// hold the stderr pipe open, so kill the group too once grace expires.
	exited := make(chan struct{})
	defer close(exited)
	go func() {
		select {
		case <-ctx.Done():
		case <-exited:
			return
		}
		timer := time.NewTimer(r.Grace)
		defer timer.Stop()
		select {
		case <-timer.C:
			killGroup(cmd)
		case <-exited:
		}
	}()

	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStatusLine)
	scanner.Split(scanStatusLines)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		if onLine != nil {
			onLine(scanner.Text())
		}
	}
	if scanErr := scanner.Err(); scanErr != nil && ctx.Err() == nil {
		// The child blocks on a full pipe unless the rest of stderr is consumed.
		_, _ = io.Copy(io.Discard, stderr)
		r.logger.Warn("ffmpeg status stream unreadable",
			zap.String("command", inv.String()),
			zap.Error(scanErr),
		)
		if onLine != nil {
			onLine(fmt.Sprintf("status stream: %v (remaining output discarded)", scanErr))
		}
	}

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		killGroup(cmd)
		return ctx.Err()
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) && exitErr.ExitCode() >= 0 {
			return &ExitError{Code: exitErr.ExitCode()}
		}
		return waitErr
	}
	return nil
}

// scanStatusLines splits on \n or \r so ffmpeg's carriage-return progress
// updates arrive as separate lines.
func scanStatusLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
