package logging

import (
	"context"
	"log/slog"
)

// NewNop returns a logger that discards every record.
func NewNop() *slog.Logger { return slog.New(nopHandler{}) }

// NewComponentLogger tags logger with the component field. A nil logger
// falls back to the nop logger.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }
