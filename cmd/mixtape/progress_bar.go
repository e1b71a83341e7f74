package main

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"

	"mixtape/internal/progress"
)

const barScale = 1000

// barObserver draws one terminal progress bar per job.
type barObserver struct {
	out io.Writer
	bar *progressbar.ProgressBar
	job int
}

func newBarObserver(out io.Writer) *barObserver {
	return &barObserver{out: out}
}

func (o *barObserver) Observe(e progress.Event) {
	switch e.Kind {
	case progress.KindJob:
		if e.Status == "running" {
			o.start(e.Job)
			return
		}
		if o.bar != nil && e.Job == o.job {
			if e.Status == "done" {
				_ = o.bar.Set(barScale)
			}
			_ = o.bar.Finish()
			fmt.Fprintln(o.out)
			o.bar = nil
		}
	case progress.KindProgress:
		if o.bar == nil || e.Job != o.job {
			o.start(e.Job)
		}
		o.bar.Describe(fmt.Sprintf("Video %d: %-9s", e.Job, e.Stage))
		_ = o.bar.Set(int(e.Overall * barScale))
	}
}

func (o *barObserver) start(job int) {
	o.job = job
	o.bar = progressbar.NewOptions(barScale,
		progressbar.OptionSetWriter(o.out),
		progressbar.OptionSetDescription(fmt.Sprintf("Video %d", job)),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
	)
}
