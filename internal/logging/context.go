package logging

import (
	"context"

	"go.uber.org/zap"

	"mixtape/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldBatchID is the standardized structured logging key for batch identifiers.
	FieldBatchID = "batch_id"
	// FieldJob is the standardized structured logging key for 1-based job indexes.
	FieldJob = "job"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
)

// ContextFields extracts standardized zap fields from the provided context.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields := make([]zap.Field, 0, 3)
	if id, ok := services.BatchIDFromContext(ctx); ok {
		fields = append(fields, zap.String(FieldBatchID, id))
	}
	if idx, ok := services.JobIndexFromContext(ctx); ok {
		fields = append(fields, zap.Int(FieldJob, idx))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, zap.String(FieldStage, stage))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}
