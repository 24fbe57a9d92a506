package services

import "context"

type contextKey string

const (
	runIDKey    contextKey = "run_id"
	objectIDKey contextKey = "object_id"
	stageKey    contextKey = "stage"
)

// WithRunID annotates context with the classification run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithObjectID annotates context with the TOM diaobject identifier being processed.
func WithObjectID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, objectIDKey, id)
}

// ObjectIDFromContext extracts the diaobject identifier if present.
func ObjectIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(objectIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
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
