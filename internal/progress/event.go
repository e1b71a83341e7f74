// Package progress carries pipeline progress from the batch worker to
// observers without ever blocking the worker.
//
// The worker pushes Events into a bounded Queue; a Relay goroutine polls the
// queue and hands events to observers in emission order. When the queue is
// full the oldest progress event is dropped, so a slow observer costs
// resolution, never throughput.
package progress

import "time"

// Stage names one external transcoding step.
type Stage string

const (
	StageNormalize Stage = "normalize"
	StageConcat    Stage = "concat"
	StageSubtitle  Stage = "subtitle"
	StageMux       Stage = "mux"
)

// Stages lists every stage in execution order.
var Stages = []Stage{StageNormalize, StageConcat, StageSubtitle, StageMux}

// Order returns the stage's position in the pipeline, or -1 when unknown.
func (s Stage) Order() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// Kind distinguishes stage progress from lifecycle events.
type Kind string

const (
	KindProgress Kind = "progress"
	KindJob      Kind = "job"
	KindBatch    Kind = "batch"
)

// Event is one progress or lifecycle notification.
type Event struct {
	Kind Kind
	// Job is the 1-based job index; 0 for batch-level events.
	Job   int
	Stage Stage
	// Fraction is the stage-local completion in [0,1].
	Fraction float64
	// Overall is the job's end-to-end completion in [0,1].
	Overall float64
	// Status carries the job or batch state for lifecycle events.
	Status  string
	Message string
	Time    time.Time
}

// Lifecycle reports whether the event marks a state change rather than a
// progress tick.
func (e Event) Lifecycle() bool {
	return e.Kind != KindProgress
}

// Terminal reports whether the event announces a job or batch outcome.
func (e Event) Terminal() bool {
	if !e.Lifecycle() {
		return false
	}
	switch e.Status {
	case "done", "failed", "cancelled":
		return true
	}
	return false
}
