package logstream_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"grabit/internal/api"
	"grabit/internal/ipc"
	"grabit/internal/logging"
	"grabit/internal/logs"
	"grabit/internal/logstream"
)

// scriptedTail records every request and answers the first with canned
// lines, later ones with an empty page at the same offset.
type scriptedTail struct {
	lines    []string
	requests []ipc.LogTailRequest
	observe  func(call int, req ipc.LogTailRequest)
}

func (s *scriptedTail) LogTail(req ipc.LogTailRequest) (*ipc.LogTailResponse, error) {
	s.requests = append(s.requests, req)
	if s.observe != nil {
		s.observe(len(s.requests), req)
	}
	if len(s.requests) == 1 {
		return &ipc.LogTailResponse{Lines: s.lines, Offset: 100}, nil
	}
	return &ipc.LogTailResponse{Offset: 100}, nil
}

func TestRunPrefersAPIStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/logs" {
			http.NotFound(w, r)
			return
		}
		resp := api.LogStreamResponse{
			Events: []logging.LogEvent{
				{Sequence: 1, Level: "INFO", Message: "first"},
				{Sequence: 2, Level: "WARN", Message: "second"},
			},
			Next: 3,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client, err := logs.NewStreamClient(strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatalf("NewStreamClient: %v", err)
	}
	tail := &scriptedTail{lines: []string{"should not be used"}}

	var messages []string
	sink := logstream.Sink{Event: func(evt logging.LogEvent) {
		messages = append(messages, evt.Message)
	}}
	emitted, err := logstream.Run(context.Background(),
		logstream.Source{API: client, Tail: tail},
		logstream.Options{Lines: 5}, sink)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !emitted {
		t.Fatal("expected events to be emitted")
	}
	if len(messages) != 2 || messages[0] != "first" || messages[1] != "second" {
		t.Fatalf("unexpected messages: %v", messages)
	}
	if len(tail.requests) != 0 {
		t.Fatalf("tail consulted despite working API: %d calls", len(tail.requests))
	}
}

func TestRunFallsBackToTail(t *testing.T) {
	tail := &scriptedTail{lines: []string{"one", "two"}}

	var lines []string
	sink := logstream.Sink{Line: func(line string) { lines = append(lines, line) }}
	emitted, err := logstream.Run(context.Background(),
		logstream.Source{Tail: tail},
		logstream.Options{Lines: 2}, sink)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !emitted {
		t.Fatal("expected lines to be emitted")
	}
	if len(lines) != 2 || lines[0] != "one" || lines[1] != "two" {
		t.Fatalf("unexpected lines: %v", lines)
	}
	if len(tail.requests) != 1 {
		t.Fatalf("expected a single tail call, got %d", len(tail.requests))
	}
	if req := tail.requests[0]; req.Offset != -1 || req.Limit != 2 {
		t.Fatalf("initial request = %+v, want offset -1 limit 2", req)
	}
}

func TestRunFiltersNeedAPI(t *testing.T) {
	tail := &scriptedTail{}
	opts := logstream.Options{Lines: 10, Filters: logstream.Filters{Component: "hub"}}
	_, err := logstream.Run(context.Background(), logstream.Source{Tail: tail}, opts, logstream.Sink{})
	if !errors.Is(err, logstream.ErrFiltersNeedAPI) {
		t.Fatalf("expected filter error, got %v", err)
	}
	if len(tail.requests) != 0 {
		t.Fatal("tail must stay unused when filters are set")
	}
}

func TestRunWithoutTransportsReportsUnavailable(t *testing.T) {
	_, err := logstream.Run(context.Background(), logstream.Source{}, logstream.Options{Lines: 1}, logstream.Sink{})
	if !errors.Is(err, logs.ErrAPIUnavailable) {
		t.Fatalf("expected API unavailable error, got %v", err)
	}
}

func TestRunFollowStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tail := &scriptedTail{lines: []string{"live"}}
	tail.observe = func(call int, req ipc.LogTailRequest) {
		if call >= 2 {
			cancel()
		}
	}

	var lines []string
	sink := logstream.Sink{Line: func(line string) { lines = append(lines, line) }}
	emitted, err := logstream.Run(ctx,
		logstream.Source{Tail: tail},
		logstream.Options{Lines: 1, Follow: true}, sink)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !emitted || len(lines) != 1 || lines[0] != "live" {
		t.Fatalf("unexpected lines: %v", lines)
	}
}
