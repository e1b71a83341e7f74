package batch

import (
	"fmt"
	"time"

	"mixtape/internal/ordering"
	"mixtape/internal/progress"
)

// Status is a job's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusCancelled
}

func (s Status) canTransition(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusRunning
	case StatusRunning:
		return to.Terminal()
	default:
		return false
	}
}

// Job is one requested output video.
type Job struct {
	// Index is 1-based.
	Index      int
	Ordering   ordering.Ordering
	ImageIndex int
	Image      string
	OutputPath string
	Status     Status
	// Stage is where a failed or cancelled job stopped.
	Stage      progress.Stage
	Diagnostic string
	// Location is where the finished video was uploaded, when publishing is on.
	Location string
	// Note carries non-fatal remarks such as an upload failure.
	Note     string
	Warnings []string
	Elapsed  time.Duration
}

func (j *Job) transition(to Status) error {
	if !j.Status.canTransition(to) {
		return fmt.Errorf("job %d: invalid transition %s -> %s", j.Index, j.Status, to)
	}
	j.Status = to
	return nil
}

// Summary counts jobs by outcome. Pending jobs were never started.
type Summary struct {
	Done      int
	Failed    int
	Cancelled int
	Pending   int
}

// Summarize tallies jobs.
func Summarize(jobs []Job) Summary {
	var s Summary
	for _, j := range jobs {
		switch j.Status {
		case StatusDone:
			s.Done++
		case StatusFailed:
			s.Failed++
		case StatusCancelled:
			s.Cancelled++
		case StatusPending:
			s.Pending++
		}
	}
	return s
}
