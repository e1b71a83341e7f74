package services

import "context"

type contextKey string

const (
	batchIDKey  contextKey = "batch_id"
	jobIndexKey contextKey = "job_index"
	stageKey    contextKey = "stage"
)

// WithBatchID annotates context with the batch identifier.
func WithBatchID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, batchIDKey, id)
}

// BatchIDFromContext extracts the batch identifier if present.
func BatchIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(batchIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithJobIndex annotates context with the 1-based job index within a batch.
func WithJobIndex(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, jobIndexKey, index)
}

// JobIndexFromContext extracts the job index if present.
func JobIndexFromContext(ctx context.Context) (int, bool) {
	v := ctx.Value(jobIndexKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	default:
		return 0, false
	}
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}
