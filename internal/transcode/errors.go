package transcode

import (
	"fmt"

	"mixtape/internal/progress"
)

// StageError reports a stage that did not complete. Err carries
// services.ErrExternalTool for failures and services.ErrCancelled for
// cancellations.
type StageError struct {
	Stage      progress.Stage
	ExitCode   int
	Diagnostic string
	Err        error
}

func (e *StageError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("%s stage failed (exit %d): %v", e.Stage, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
