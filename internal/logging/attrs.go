package logging

import (
	"go.uber.org/zap"
)

const (
	// FieldEventType categorizes a log line for filtering (job_failed, lyrics_skipped...).
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldDecisionType marks log lines that record a branch taken by the pipeline.
	FieldDecisionType = "decision_type"
)

// NewNop returns a logger that discards everything.
func NewNop() *zap.Logger {
	return zap.NewNop()
}

// NewComponentLogger creates a logger with a standardized component field.
// If logger is nil, a no-op logger is used as the base.
func NewComponentLogger(logger *zap.Logger, component string) *zap.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(zap.String(FieldComponent, component))
}

// HasField returns true if any field in fields has the given key.
func HasField(fields []zap.Field, key string) bool {
	for _, f := range fields {
		if f.Key == key {
			return true
		}
	}
	return false
}

// WarnWithContext logs a warning with enforced event_type, error_hint, and impact fields.
// If any of these fields are missing, defaults are injected.
func WarnWithContext(logger *zap.Logger, msg, eventType string, fields ...zap.Field) {
	if logger == nil {
		return
	}
	if !HasField(fields, FieldEventType) {
		fields = append(fields, zap.String(FieldEventType, eventType))
	}
	if !HasField(fields, FieldErrorHint) {
		fields = append(fields, zap.String(FieldErrorHint, "check logs for details"))
	}
	if !HasField(fields, FieldImpact) {
		fields = append(fields, zap.String(FieldImpact, "operation completed with warnings"))
	}
	logger.Warn(msg, fields...)
}

// ErrorWithContext logs an error with enforced event_type and error_hint fields.
func ErrorWithContext(logger *zap.Logger, msg, eventType string, fields ...zap.Field) {
	if logger == nil {
		return
	}
	if !HasField(fields, FieldEventType) {
		fields = append(fields, zap.String(FieldEventType, eventType))
	}
	if !HasField(fields, FieldErrorHint) {
		fields = append(fields, zap.String(FieldErrorHint, "check logs for details"))
	}
	logger.Error(msg, fields...)
}

// DecisionFields builds consistent fields for decision logging.
func DecisionFields(decisionType, result, reason string) []zap.Field {
	return []zap.Field{
		zap.String(FieldDecisionType, decisionType),
		zap.String("decision_result", result),
		zap.String("decision_reason", reason),
	}
}
