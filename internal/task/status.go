package task

import "strings"

// Status represents the lifecycle of a retrieval task.
type Status string

const (
	StatusPending     Status = "pending"
	StatusExtracting  Status = "extracting"
	StatusDownloading Status = "downloading"
	StatusRendering   Status = "rendering"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusExtracting,
	StatusDownloading,
	StatusRendering,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status is a sink no task ever leaves.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether the status reflects an in-flight operation.
func (s Status) IsActive() bool {
	switch s {
	case StatusExtracting, StatusDownloading, StatusRendering:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a task may move from one status to another.
// The lifecycle only moves forward: pending, extracting, downloading, an
// optional rendering step, then a terminal sink. Batch tasks skip the
// extracting stage and enter downloading directly. Failure and cancellation
// are reachable from any non-terminal status.
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	if from.IsTerminal() {
		return false
	}
	switch to {
	case StatusCancelled, StatusFailed:
		return true
	case StatusCompleted:
		return from != StatusPending
	case StatusExtracting:
		return from == StatusPending
	case StatusDownloading:
		return from == StatusPending || from == StatusExtracting
	case StatusRendering:
		return from == StatusDownloading
	default:
		return false
	}
}
