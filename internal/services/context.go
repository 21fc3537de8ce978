package services

import "context"

type contextKey string

const (
	taskIDKey contextKey = "task_id"
	stageKey  contextKey = "stage"
)

// WithTaskID records the task identifier for downstream log enrichment.
// Blank identifiers leave the context unchanged.
func WithTaskID(ctx context.Context, id string) context.Context {
	return withString(ctx, taskIDKey, id)
}

// TaskIDFromContext reports the task identifier recorded on ctx, if any.
func TaskIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, taskIDKey)
}

// WithStage records the lifecycle stage a task is currently in.
func WithStage(ctx context.Context, stage string) context.Context {
	return withString(ctx, stageKey, stage)
}

// StageFromContext reports the stage recorded on ctx, if any.
func StageFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, stageKey)
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	value, ok := ctx.Value(key).(string)
	return value, ok && value != ""
}
