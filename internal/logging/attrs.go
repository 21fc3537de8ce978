package logging

import (
	"log/slog"
	"time"
)

// Attr aliases slog.Attr so call sites build attributes through this
// package alone.
type Attr = slog.Attr

func String(key, v string) Attr { return slog.String(key, v) }

func Int(key string, v int) Attr { return slog.Int(key, v) }

func Int64(key string, v int64) Attr { return slog.Int64(key, v) }

func Float64(key string, v float64) Attr { return slog.Float64(key, v) }

func Bool(key string, v bool) Attr { return slog.Bool(key, v) }

func Duration(key string, v time.Duration) Attr { return slog.Duration(key, v) }

func Any(key string, v any) Attr { return slog.Any(key, v) }

// Error records err under the "error" key; a nil err logs as "<nil>".
func Error(err error) Attr {
	if err == nil {
		return String("error", "<nil>")
	}
	return Any("error", err)
}

// asArgs widens attrs into the variadic form slog's logger methods accept.
func asArgs(attrs []Attr) []any {
	out := make([]any, len(attrs))
	for i, a := range attrs {
		out[i] = a
	}
	return out
}
