package logging

import (
	"context"
	"log/slog"

	"grabit/internal/services"
)

// Keys every structured log line shares. Handlers and filters match on
// these, so producers must not improvise their own spellings.
const (
	FieldComponent = "component"
	FieldTaskID    = "task_id"
	FieldStage     = "stage"
	FieldKind      = "kind"
	FieldURL       = "url"
)

// WithContext returns logger carrying the task identity stamped on ctx.
// Contexts without task fields return the logger unchanged.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := taskFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(asArgs(fields)...)
}

func taskFields(ctx context.Context) []Attr {
	if ctx == nil {
		return nil
	}
	var fields []Attr
	if id, ok := services.TaskIDFromContext(ctx); ok {
		fields = append(fields, String(FieldTaskID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, String(FieldStage, stage))
	}
	return fields
}
