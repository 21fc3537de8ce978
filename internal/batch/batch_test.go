package batch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"grabit/internal/media"
	"grabit/internal/services"
)

func TestRunOneResultPerItem(t *testing.T) {
	exec := Executor{Limit: 3}
	results := exec.Run(context.Background(), 7, func(ctx context.Context, index int) (*media.SingleResult, error) {
		return &media.SingleResult{TaskID: "item", Status: "completed", Filesize: int64(index)}, nil
	})
	if len(results) != 7 {
		t.Fatalf("got %d results, want 7", len(results))
	}
	for i, res := range results {
		if res == nil {
			t.Fatalf("result %d is nil", i)
		}
		if res.Status != "completed" || res.Filesize != int64(i) {
			t.Fatalf("result %d out of place: %+v", i, res)
		}
	}
}

func TestRunHonorsConcurrencyLimit(t *testing.T) {
	const limit = 3
	var active, peak int64
	exec := Executor{Limit: limit}
	results := exec.Run(context.Background(), 20, func(ctx context.Context, index int) (*media.SingleResult, error) {
		current := atomic.AddInt64(&active, 1)
		for {
			observed := atomic.LoadInt64(&peak)
			if current <= observed || atomic.CompareAndSwapInt64(&peak, observed, current) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&active, -1)
		return &media.SingleResult{Status: "completed"}, nil
	})
	if len(results) != 20 {
		t.Fatalf("got %d results", len(results))
	}
	if peak > limit {
		t.Fatalf("observed %d concurrent items, limit is %d", peak, limit)
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	exec := Executor{Limit: 2}
	results := exec.Run(context.Background(), 4, func(ctx context.Context, index int) (*media.SingleResult, error) {
		if index == 1 {
			return nil, services.Wrap(services.ErrDownload, "ytdlp", "download", "network down", nil)
		}
		if index == 2 {
			panic("item exploded")
		}
		return &media.SingleResult{Status: "completed"}, nil
	})

	if results[0].Status != "completed" || results[3].Status != "completed" {
		t.Fatalf("healthy siblings affected: %+v %+v", results[0], results[3])
	}
	if results[1].Status != "failed" || results[1].ErrorType != services.KindDownload {
		t.Fatalf("error not converted to failure result: %+v", results[1])
	}
	if results[2].Status != "failed" || results[2].ErrorType != services.KindInternal {
		t.Fatalf("panic not converted to failure result: %+v", results[2])
	}
}

func TestRunNilResultBecomesFailure(t *testing.T) {
	exec := Executor{Limit: 1}
	results := exec.Run(context.Background(), 1, func(ctx context.Context, index int) (*media.SingleResult, error) {
		return nil, nil
	})
	if results[0].Status != "failed" {
		t.Fatalf("expected failure shape, got %+v", results[0])
	}
}

func TestRunEmitsOrderedProgress(t *testing.T) {
	var mu sync.Mutex
	var seen []int
	exec := Executor{
		Limit: 4,
		OnProgress: func(completed, total int) {
			if total != 6 {
				t.Errorf("total = %d, want 6", total)
			}
			mu.Lock()
			seen = append(seen, completed)
			mu.Unlock()
		},
	}
	exec.Run(context.Background(), 6, func(ctx context.Context, index int) (*media.SingleResult, error) {
		return &media.SingleResult{Status: "completed"}, nil
	})

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 6 {
		t.Fatalf("got %d progress events, want 6", len(seen))
	}
	for i, count := range seen {
		if count != i+1 {
			t.Fatalf("progress out of order: %v", seen)
		}
	}
}

func TestRunCancellationStopsPendingItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	var started int64

	exec := Executor{Limit: 2}
	done := make(chan []*media.SingleResult, 1)
	go func() {
		done <- exec.Run(ctx, 6, func(ctx context.Context, index int) (*media.SingleResult, error) {
			atomic.AddInt64(&started, 1)
			<-release
			return &media.SingleResult{Status: "completed"}, nil
		})
	}()

	// Wait for both slots to fill, then cancel while four items queue.
	deadline := time.After(2 * time.Second)
	for atomic.LoadInt64(&started) < 2 {
		select {
		case <-deadline:
			t.Fatal("items never started")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	var results []*media.SingleResult
	select {
	case results = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	close(release)

	if len(results) != 6 {
		t.Fatalf("got %d results, want 6", len(results))
	}
	cancelled := 0
	for _, res := range results {
		if res.Status != "cancelled" {
			t.Fatalf("expected cancelled placeholder, got %+v", res)
		}
		cancelled++
	}
	if cancelled != 6 {
		t.Fatalf("cancelled %d of 6", cancelled)
	}
	if got := atomic.LoadInt64(&started); got != 2 {
		t.Fatalf("%d items started, want 2 (pending items must not start)", got)
	}
}

func TestRunFinishedResultsSurviveCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	firstDone := make(chan struct{})
	block := make(chan struct{})

	exec := Executor{Limit: 1}
	done := make(chan []*media.SingleResult, 1)
	go func() {
		done <- exec.Run(ctx, 2, func(ctx context.Context, index int) (*media.SingleResult, error) {
			if index == 0 {
				defer close(firstDone)
				return &media.SingleResult{TaskID: "first", Status: "completed"}, nil
			}
			<-block
			return &media.SingleResult{TaskID: "second", Status: "completed"}, nil
		})
	}()

	<-firstDone
	// Give the second item time to occupy the slot before cancelling.
	time.Sleep(10 * time.Millisecond)
	cancel()

	var results []*media.SingleResult
	select {
	case results = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	close(block)

	if results[0].Status != "completed" || results[0].TaskID != "first" {
		t.Fatalf("finished result lost: %+v", results[0])
	}
	if results[1].Status != "cancelled" {
		t.Fatalf("in-flight result should be discarded: %+v", results[1])
	}
}

func TestRunZeroItems(t *testing.T) {
	exec := Executor{Limit: 2, OnProgress: func(completed, total int) {
		t.Errorf("unexpected progress event %d/%d", completed, total)
	}}
	if results := exec.Run(context.Background(), 0, nil); len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestRunCancelledContextError(t *testing.T) {
	exec := Executor{Limit: 1}
	results := exec.Run(context.Background(), 1, func(ctx context.Context, index int) (*media.SingleResult, error) {
		return nil, context.Canceled
	})
	if results[0].ErrorType != services.KindCancelled {
		t.Fatalf("context cancellation not classified: %+v", results[0])
	}
}
