package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"grabit/internal/media"
)

// Kind distinguishes the submission shapes a task can originate from.
type Kind string

const (
	KindSingle   Kind = "single"
	KindPlaylist Kind = "playlist"
	KindBatch    Kind = "batch"
)

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindSingle:
		return KindSingle, true
	case KindPlaylist:
		return KindPlaylist, true
	case KindBatch:
		return KindBatch, true
	default:
		return "", false
	}
}

// NewID mints a task identifier of the form <kind>_<uuid8>_<unixts>.
func NewID(kind Kind) string {
	return fmt.Sprintf("%s_%s_%d", kind, uuid.NewString()[:8], time.Now().Unix())
}

// Task is one tracked retrieval with its lifecycle state. Instances are
// owned by a Registry; callers receive defensive copies.
type Task struct {
	ID     string `json:"task_id"`
	Kind   Kind   `json:"kind"`
	URL    string `json:"url,omitempty"`
	Status Status `json:"status"`

	Progress *media.ProgressEvent `json:"progress,omitempty"`
	Result   media.Result         `json:"result,omitempty"`

	Error     string `json:"error,omitempty"`
	ErrorType string `json:"error_type,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// New builds a pending task for the given submission shape.
func New(kind Kind, url string) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:        NewID(kind),
		Kind:      kind,
		URL:       url,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (t *Task) clone() *Task {
	cp := *t
	if t.Progress != nil {
		progress := *t.Progress
		cp.Progress = &progress
	}
	return &cp
}
