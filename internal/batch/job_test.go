package batch

import (
	"path/filepath"
	"testing"
	"time"
)

func TestJobTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusRunning, true},
		{StatusPending, StatusDone, false},
		{StatusRunning, StatusDone, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusCancelled, true},
		{StatusRunning, StatusPending, false},
		{StatusDone, StatusRunning, false},
		{StatusCancelled, StatusDone, false},
	}
	for _, tt := range tests {
		job := Job{Index: 1, Status: tt.from}
		err := job.transition(tt.to)
		if (err == nil) != tt.ok {
			t.Fatalf("%s -> %s: err = %v, want ok=%v", tt.from, tt.to, err, tt.ok)
		}
		if tt.ok && job.Status != tt.to {
			t.Fatalf("status not updated: %s", job.Status)
		}
		if !tt.ok && job.Status != tt.from {
			t.Fatalf("rejected transition changed status to %s", job.Status)
		}
	}
}

func TestSummarize(t *testing.T) {
	jobs := []Job{
		{Status: StatusDone}, {Status: StatusDone}, {Status: StatusFailed},
		{Status: StatusCancelled}, {Status: StatusPending},
	}
	got := Summarize(jobs)
	want := Summary{Done: 2, Failed: 1, Cancelled: 1, Pending: 1}
	if got != want {
		t.Fatalf("Summarize = %+v, want %+v", got, want)
	}
}

func TestOutputPath(t *testing.T) {
	dir := filepath.Join("out")
	tests := []struct {
		template     string
		count, index int
		want         string
	}{
		{"mix", 1, 1, "mix.mp4"},
		{"mix", 3, 2, "mix_2.mp4"},
		{"", 2, 1, "output_1.mp4"},
		{"..", 1, 1, "output.mp4"},
		{"a/b: c", 1, 1, "a-b- c.mp4"},
	}
	for _, tt := range tests {
		got := OutputPath(dir, tt.template, tt.count, tt.index)
		if got != filepath.Join(dir, tt.want) {
			t.Fatalf("OutputPath(%q, %d, %d) = %q, want %q", tt.template, tt.count, tt.index, got, tt.want)
		}
	}
}

func TestTimerRestartAndStop(t *testing.T) {
	var timer Timer
	if timer.Running() || timer.Elapsed() != 0 {
		t.Fatal("zero timer should be stopped at 0")
	}
	timer.Restart()
	time.Sleep(5 * time.Millisecond)
	if !timer.Running() || timer.Elapsed() < 5*time.Millisecond {
		t.Fatalf("running timer elapsed = %v", timer.Elapsed())
	}
	frozen := timer.Stop()
	time.Sleep(2 * time.Millisecond)
	if timer.Elapsed() != frozen {
		t.Fatalf("stopped timer moved: %v != %v", timer.Elapsed(), frozen)
	}
	timer.Restart()
	if timer.Elapsed() >= frozen {
		t.Fatalf("restart should zero the timer, got %v", timer.Elapsed())
	}
}
