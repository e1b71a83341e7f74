package progress

import (
	"go.uber.org/zap"

	"mixtape/internal/logging"
)

// LogObserver writes sampled progress and every lifecycle event to a logger.
type LogObserver struct {
	logger  *zap.Logger
	sampler *logging.ProgressSampler
	lastJob int
}

// NewLogObserver logs progress in 10% steps per stage.
func NewLogObserver(logger *zap.Logger) *LogObserver {
	return &LogObserver{
		logger:  logging.NewComponentLogger(logger, "progress"),
		sampler: logging.NewProgressSampler(10),
	}
}

// Observe implements Observer.
func (o *LogObserver) Observe(e Event) {
	if e.Job != o.lastJob {
		o.lastJob = e.Job
		o.sampler.Reset()
	}
	if e.Lifecycle() {
		o.logger.Debug("lifecycle event",
			zap.String("kind", string(e.Kind)),
			zap.Int(logging.FieldJob, e.Job),
			zap.String("status", e.Status),
			zap.String("message", e.Message),
		)
		return
	}
	if !o.sampler.ShouldLog(string(e.Stage), e.Fraction) {
		return
	}
	o.logger.Debug("stage progress",
		zap.Int(logging.FieldJob, e.Job),
		zap.String(logging.FieldStage, string(e.Stage)),
		zap.Float64("stage_fraction", e.Fraction),
		zap.Float64("overall", e.Overall),
	)
}
