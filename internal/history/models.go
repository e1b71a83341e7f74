package history

import "time"

// Batch is one recorded batch run.
type Batch struct {
	ID         string
	Status     string
	OutputName string
	Tracks     int
	Requested  int
	Effective  int
	Done       int
	Failed     int
	Cancelled  int
	StartedAt  time.Time
	// FinishedAt is zero while the batch is running.
	FinishedAt time.Time
}

// Elapsed returns the batch wall time, measured to now when unfinished.
func (b Batch) Elapsed() time.Duration {
	if b.StartedAt.IsZero() {
		return 0
	}
	if b.FinishedAt.IsZero() {
		return time.Since(b.StartedAt)
	}
	return b.FinishedAt.Sub(b.StartedAt)
}

// Job is one recorded job.
type Job struct {
	BatchID     string
	Index       int
	Status      string
	Stage       string
	Fingerprint string
	Image       string
	OutputPath  string
	Diagnostic  string
	Note        string
	Elapsed     time.Duration
	UpdatedAt   time.Time
}
