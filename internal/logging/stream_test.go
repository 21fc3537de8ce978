package logging

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"
)

func TestStreamHubPublishAssignsSequence(t *testing.T) {
	hub := NewStreamHub(16)
	hub.Publish(LogEvent{Message: "first"})
	hub.Publish(LogEvent{Message: "second"})

	events, next := hub.Tail(10)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Sequence != 1 || events[1].Sequence != 2 {
		t.Fatalf("unexpected sequences: %d, %d", events[0].Sequence, events[1].Sequence)
	}
	if next != 2 {
		t.Fatalf("expected next sequence 2, got %d", next)
	}
}

func TestStreamHubCapacityEvictsOldest(t *testing.T) {
	hub := NewStreamHub(3)
	for i := 0; i < 5; i++ {
		hub.Publish(LogEvent{Message: fmt.Sprintf("msg-%d", i)})
	}

	events, _ := hub.Tail(10)
	if len(events) != 3 {
		t.Fatalf("expected buffer capped at 3, got %d", len(events))
	}
	if events[0].Message != "msg-2" {
		t.Fatalf("expected oldest retained event msg-2, got %q", events[0].Message)
	}
}

func TestStreamHubFetchSince(t *testing.T) {
	hub := NewStreamHub(16)
	for i := 0; i < 4; i++ {
		hub.Publish(LogEvent{Message: fmt.Sprintf("msg-%d", i)})
	}

	events, next, err := hub.Fetch(context.Background(), 2, 10, false)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events after seq 2, got %d", len(events))
	}
	if events[0].Sequence != 3 {
		t.Fatalf("expected first event seq 3, got %d", events[0].Sequence)
	}
	if next != 4 {
		t.Fatalf("expected next sequence 4, got %d", next)
	}
}

func TestStreamHubFetchWaitWakesOnPublish(t *testing.T) {
	hub := NewStreamHub(16)

	done := make(chan []LogEvent, 1)
	go func() {
		events, _, _ := hub.Fetch(context.Background(), 0, 10, true)
		done <- events
	}()

	time.Sleep(20 * time.Millisecond)
	hub.Publish(LogEvent{Message: "wake"})

	select {
	case events := <-done:
		if len(events) != 1 || events[0].Message != "wake" {
			t.Fatalf("unexpected events: %+v", events)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not wake after publish")
	}
}

func TestStreamHubFetchWaitHonorsContext(t *testing.T) {
	hub := NewStreamHub(16)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, _, err := hub.Fetch(ctx, 0, 10, true)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected context error from cancelled Fetch")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not return after context cancellation")
	}
}

func TestStreamHandlerCollectsAttrs(t *testing.T) {
	hub := NewStreamHub(16)
	base := slog.NewTextHandler(discardWriter{}, nil)
	logger := slog.New(newStreamHandler(base, hub)).
		With(slog.String(FieldComponent, "orchestrator")).
		With(slog.String(FieldTaskID, "single_ab12cd34_1700000000"))

	logger.Info("download started", slog.String(FieldStage, "downloading"), slog.String("quality", "720"))

	events, _ := hub.Tail(10)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	evt := events[0]
	if evt.Component != "orchestrator" {
		t.Errorf("expected component orchestrator, got %q", evt.Component)
	}
	if evt.TaskID != "single_ab12cd34_1700000000" {
		t.Errorf("unexpected task id %q", evt.TaskID)
	}
	if evt.Stage != "downloading" {
		t.Errorf("expected stage downloading, got %q", evt.Stage)
	}
	if evt.Fields["quality"] != "720" {
		t.Errorf("expected quality field in %v", evt.Fields)
	}
}

func TestStreamHandlerNilHubReturnsBase(t *testing.T) {
	base := slog.NewTextHandler(discardWriter{}, nil)
	if handler := newStreamHandler(base, nil); handler != base {
		t.Error("expected base handler when hub is nil")
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
