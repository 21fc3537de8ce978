// Package logstream drives the CLI logs command: it prefers the daemon's
// HTTP log stream and drops back to tailing the log file over IPC when
// the API is unreachable.
package logstream

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"grabit/internal/ipc"
	"grabit/internal/logging"
	"grabit/internal/logs"
)

// ErrFiltersNeedAPI rejects filtered streaming when only the file tail
// is reachable; the tail serves raw lines and cannot filter.
var ErrFiltersNeedAPI = errors.New("log filters need the daemon API")

// TailClient is the IPC surface the fallback path needs.
type TailClient interface {
	LogTail(req ipc.LogTailRequest) (*ipc.LogTailResponse, error)
}

// Source bundles the two transports logs can arrive over.
type Source struct {
	API  *logs.StreamClient
	Tail TailClient
}

// Filters narrow the HTTP stream to matching events.
type Filters struct {
	Component string
	TaskID    string
	Level     string
	Search    string
}

func (f Filters) active() bool {
	return strings.TrimSpace(f.Component) != "" ||
		strings.TrimSpace(f.TaskID) != "" ||
		strings.TrimSpace(f.Level) != "" ||
		strings.TrimSpace(f.Search) != ""
}

// Options control how much history is shown and whether to keep following.
type Options struct {
	Lines   int
	Follow  bool
	Filters Filters
}

// Sink receives output in whichever shape the active transport provides:
// structured events from the API, raw lines from the tail.
type Sink struct {
	Event func(logging.LogEvent)
	Line  func(string)
}

const followPageSize = 200

// Run streams daemon logs into sink. The HTTP stream is tried first; when
// it is unreachable the IPC tail takes over, unless filters are set. The
// returned bool reports whether anything was emitted.
func Run(ctx context.Context, src Source, opts Options, sink Sink) (bool, error) {
	emitted, err := streamEvents(ctx, src.API, opts, sink.Event)
	switch {
	case err == nil:
		return emitted, nil
	case !logs.IsAPIUnavailable(err):
		return emitted, err
	case opts.Filters.active():
		return false, fmt.Errorf("%w: %w", ErrFiltersNeedAPI, logs.ErrAPIUnavailable)
	case src.Tail == nil:
		return false, logs.ErrAPIUnavailable
	}
	return tailLines(ctx, src.Tail, opts, sink.Line)
}

func streamEvents(ctx context.Context, client *logs.StreamClient, opts Options, emit func(logging.LogEvent)) (bool, error) {
	query := logs.StreamQuery{
		Limit:     opts.Lines,
		Tail:      true,
		Component: opts.Filters.Component,
		TaskID:    opts.Filters.TaskID,
		Level:     opts.Filters.Level,
		Search:    opts.Filters.Search,
	}
	if query.Limit <= 0 {
		query.Limit = followPageSize
	}

	emitted := false
	for {
		page, err := client.Fetch(ctx, query)
		if err != nil {
			return emitted, err
		}
		for _, evt := range page.Events {
			if emit != nil {
				emit(evt)
			}
			emitted = true
		}
		if !opts.Follow {
			return emitted, nil
		}
		// Follow pages long-poll from the cursor instead of re-tailing.
		query.Since = page.Next
		query.Limit = followPageSize
		query.Tail = false
		query.Follow = true
	}
}

func tailLines(ctx context.Context, client TailClient, opts Options, emit func(string)) (bool, error) {
	limit := opts.Lines
	if limit < 0 {
		limit = 0
	}
	offset := int64(-1)
	if limit == 0 {
		offset = 0
	}

	emitted := false
	for {
		resp, err := client.LogTail(ipc.LogTailRequest{
			Offset:     offset,
			Limit:      limit,
			Follow:     opts.Follow,
			WaitMillis: 1000,
		})
		if err != nil {
			return emitted, fmt.Errorf("tail logs: %w", err)
		}
		if resp == nil {
			return emitted, errors.New("log tail response missing")
		}
		for _, line := range resp.Lines {
			if emit != nil {
				emit(line)
			}
			emitted = true
		}
		offset = resp.Offset
		limit = 0
		if !opts.Follow {
			return emitted, nil
		}
		select {
		case <-ctx.Done():
			return emitted, nil
		default:
		}
	}
}
