package task

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"grabit/internal/media"
)

var (
	// ErrNotFound reports that no task with the given id is tracked.
	ErrNotFound = errors.New("task not found")
	// ErrInvalidTransition reports a status move the lifecycle forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Registry tracks live and recently finished tasks in memory. All methods
// are safe for concurrent use and hand out copies, never shared pointers.
type Registry struct {
	mu        sync.RWMutex
	tasks     map[string]*Task
	order     []string
	submitted int64
}

// NewRegistry returns an empty task registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

// Add starts tracking a task. Re-adding an existing id replaces the record
// in place without disturbing eviction order.
func (r *Registry) Add(t *Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[t.ID]; !ok {
		r.order = append(r.order, t.ID)
		r.submitted++
	}
	r.tasks[t.ID] = t.clone()
}

// Get returns a copy of the task with the given id.
func (r *Registry) Get(id string) (*Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, false
	}
	return t.clone(), true
}

// List returns copies of all tracked tasks in submission order.
func (r *Registry) List() []*Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Task, 0, len(r.tasks))
	for _, id := range r.order {
		if t, ok := r.tasks[id]; ok {
			out = append(out, t.clone())
		}
	}
	return out
}

// Len returns the number of tracked tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// ActiveCount returns the number of tasks not yet in a terminal status.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, t := range r.tasks {
		if !t.Status.IsTerminal() {
			count++
		}
	}
	return count
}

// TotalSubmitted returns the cumulative number of tasks ever added.
func (r *Registry) TotalSubmitted() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.submitted
}

// SetStatus moves a task to a new lifecycle status, stamping the start and
// completion times as the task enters and leaves the active stretch.
func (r *Registry) SetStatus(id string, status Status) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !CanTransition(t.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, status)
	}
	now := time.Now().UTC()
	if t.StartedAt.IsZero() && status.IsActive() {
		t.StartedAt = now
	}
	if status.IsTerminal() {
		t.CompletedAt = now
	}
	t.Status = status
	t.UpdatedAt = now
	return t.clone(), nil
}

// SetProgress records the latest progress observation for a task.
func (r *Registry) SetProgress(id string, ev media.ProgressEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.Status.IsTerminal() {
		return false
	}
	progress := ev
	t.Progress = &progress
	t.UpdatedAt = time.Now().UTC()
	return true
}

// Complete moves a task to completed and records its result.
func (r *Registry) Complete(id string, result media.Result) (*Task, error) {
	return r.finish(id, StatusCompleted, result, "", "")
}

// Fail moves a task to failed, recording the error and an optional
// failure-shaped result.
func (r *Registry) Fail(id, errType, message string, result media.Result) (*Task, error) {
	return r.finish(id, StatusFailed, result, errType, message)
}

// Cancel moves a task to cancelled. Cancelling an already terminal task
// returns ErrInvalidTransition.
func (r *Registry) Cancel(id string) (*Task, error) {
	return r.finish(id, StatusCancelled, nil, "", "")
}

func (r *Registry) finish(id string, status Status, result media.Result, errType, message string) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !CanTransition(t.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, status)
	}
	now := time.Now().UTC()
	t.Status = status
	t.UpdatedAt = now
	t.CompletedAt = now
	if result != nil {
		t.Result = result
	}
	if message != "" {
		t.Error = message
	}
	if errType != "" {
		t.ErrorType = errType
	}
	return t.clone(), nil
}

// Remove drops a task from the registry regardless of status.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return false
	}
	delete(r.tasks, id)
	r.dropFromOrder(id)
	return true
}

// Cleanup evicts terminal tasks older than ttl and, when the registry still
// exceeds capacity, the oldest terminal tasks beyond it. Tasks that have not
// reached a terminal status are never evicted. Returns the evicted ids.
func (r *Registry) Cleanup(ttl time.Duration, capacity int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().UTC().Add(-ttl)
	var evicted []string
	for _, id := range append([]string(nil), r.order...) {
		t, ok := r.tasks[id]
		if !ok || !t.Status.IsTerminal() {
			continue
		}
		if t.CompletedAt.Before(cutoff) {
			delete(r.tasks, id)
			r.dropFromOrder(id)
			evicted = append(evicted, id)
		}
	}

	if capacity > 0 && len(r.tasks) > capacity {
		for _, id := range append([]string(nil), r.order...) {
			if len(r.tasks) <= capacity {
				break
			}
			t, ok := r.tasks[id]
			if !ok || !t.Status.IsTerminal() {
				continue
			}
			delete(r.tasks, id)
			r.dropFromOrder(id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

func (r *Registry) dropFromOrder(id string) {
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
