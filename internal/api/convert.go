package api

import (
	"time"

	"grabit/internal/deps"
	"grabit/internal/hub"
	"grabit/internal/preflight"
	"grabit/internal/task"
)

// FromTask converts a registry snapshot to its API representation.
func FromTask(t *task.Task) TaskInfo {
	if t == nil {
		return TaskInfo{}
	}
	dto := TaskInfo{
		TaskID:    t.ID,
		Kind:      string(t.Kind),
		URL:       t.URL,
		Status:    string(t.Status),
		Progress:  t.Progress,
		Result:    t.Result,
		Error:     t.Error,
		ErrorType: t.ErrorType,
	}
	dto.CreatedAt = formatTime(t.CreatedAt)
	dto.UpdatedAt = formatTime(t.UpdatedAt)
	dto.StartedAt = formatTime(t.StartedAt)
	dto.CompletedAt = formatTime(t.CompletedAt)
	return dto
}

// FromTasks converts a task list, preserving registry ordering.
func FromTasks(tasks []*task.Task) TaskListResponse {
	out := make([]TaskInfo, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, FromTask(t))
	}
	return TaskListResponse{Tasks: out, Count: len(out)}
}

// FromDependencies converts binary availability statuses.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, DependencyStatus{
			Name:        s.Name,
			Command:     s.Command,
			Description: s.Description,
			Optional:    s.Optional,
			Available:   s.Available,
			Detail:      s.Detail,
		})
	}
	return out
}

// FromChecks converts preflight results.
func FromChecks(results []preflight.Result) []CheckResult {
	out := make([]CheckResult, 0, len(results))
	for _, r := range results {
		out = append(out, CheckResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	return out
}

// FromHubStats converts broadcast hub counters.
func FromHubStats(s hub.Stats) ConnectionStats {
	return ConnectionStats{
		Active:     s.ActiveConnections,
		Total:      s.TotalConnections,
		Subscribed: s.ActiveTasks,
		Max:        s.MaxConnections,
	}
}

// Now returns the current time formatted for API payloads.
func Now() string {
	return time.Now().UTC().Format(dateTimeFormat)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
