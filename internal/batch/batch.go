package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"grabit/internal/media"
	"grabit/internal/services"
)

// Func executes one work item by index and returns its outcome. Returning
// an error (or panicking) marks that item failed without touching siblings.
type Func func(ctx context.Context, index int) (*media.SingleResult, error)

// Executor fans a set of independent work items out under a fixed
// concurrency cap. Every item yields exactly one result: its own outcome,
// a failure shaped from its error or panic, or a cancelled placeholder
// when the run stops early.
type Executor struct {
	// Limit caps how many items execute at once. Values below one run
	// items serially.
	Limit int
	// OnProgress, when set, is called from the aggregation loop after
	// each item finishes, with the running completion count.
	OnProgress func(completed, total int)
}

// Run executes fn for indices [0, total) and returns one result per index.
// Items beyond the concurrency cap wait for a slot. When ctx is cancelled,
// items that have not started are given cancelled results, the aggregation
// stops waiting, and results of still-running items are discarded; the
// items themselves run to completion in the background.
func (e Executor) Run(ctx context.Context, total int, fn Func) []*media.SingleResult {
	if total <= 0 {
		return nil
	}
	limit := e.Limit
	if limit < 1 {
		limit = 1
	}

	var mu sync.Mutex
	results := make([]*media.SingleResult, total)
	sem := make(chan struct{}, limit)
	finished := make(chan struct{}, total)

	record := func(index int, res *media.SingleResult) {
		mu.Lock()
		results[index] = res
		mu.Unlock()
		finished <- struct{}{}
	}

	for i := 0; i < total; i++ {
		go func(index int) {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				record(index, cancelledResult())
				return
			}
			defer func() { <-sem }()
			if ctx.Err() != nil {
				record(index, cancelledResult())
				return
			}
			record(index, runOne(ctx, index, fn))
		}(i)
	}

	completed := 0
	for completed < total {
		select {
		case <-finished:
			completed++
			if e.OnProgress != nil {
				e.OnProgress(completed, total)
			}
		case <-ctx.Done():
			mu.Lock()
			out := make([]*media.SingleResult, total)
			for i, res := range results {
				if res == nil {
					res = cancelledResult()
				}
				out[i] = res
			}
			mu.Unlock()
			return out
		}
	}

	mu.Lock()
	out := make([]*media.SingleResult, total)
	copy(out, results)
	mu.Unlock()
	return out
}

// runOne executes a single item, converting an error or panic into a
// failure-shaped result for that item alone.
func runOne(ctx context.Context, index int, fn Func) (out *media.SingleResult) {
	started := time.Now().UTC()
	defer func() {
		if r := recover(); r != nil {
			out = failureResult(started, services.KindInternal, fmt.Sprintf("panic: %v", r))
		}
	}()

	res, err := fn(ctx, index)
	if err != nil {
		return failureResult(started, services.Classify(err), err.Error())
	}
	if res == nil {
		return failureResult(started, services.KindInternal, "item produced no result")
	}
	return res
}

func failureResult(started time.Time, kind, message string) *media.SingleResult {
	return &media.SingleResult{
		Status:      "failed",
		Error:       message,
		ErrorType:   kind,
		StartedAt:   started,
		CompletedAt: time.Now().UTC(),
	}
}

func cancelledResult() *media.SingleResult {
	now := time.Now().UTC()
	return &media.SingleResult{
		Status:      "cancelled",
		Error:       "cancelled before completion",
		ErrorType:   services.KindCancelled,
		StartedAt:   now,
		CompletedAt: now,
	}
}
