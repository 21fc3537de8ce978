package api

import (
	"grabit/internal/history"
	"grabit/internal/logging"
	"grabit/internal/media"
)

// Version is the wire-visible release identifier reported by status and
// health endpoints and by the CLI version command.
const Version = "1.0.0"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// TaskInfo describes a tracked retrieval in a transport-friendly format.
type TaskInfo struct {
	TaskID      string               `json:"task_id"`
	Kind        string               `json:"kind"`
	URL         string               `json:"url,omitempty"`
	Status      string               `json:"status"`
	Progress    *media.ProgressEvent `json:"progress,omitempty"`
	Result      media.Result         `json:"result,omitempty"`
	Error       string               `json:"error,omitempty"`
	ErrorType   string               `json:"error_type,omitempty"`
	CreatedAt   string               `json:"created_at,omitempty"`
	UpdatedAt   string               `json:"updated_at,omitempty"`
	StartedAt   string               `json:"started_at,omitempty"`
	CompletedAt string               `json:"completed_at,omitempty"`
}

// TaskListResponse wraps a collection of tasks.
type TaskListResponse struct {
	Tasks []TaskInfo `json:"tasks"`
	Count int        `json:"count"`
}

// SubmitResponse acknowledges an accepted download submission.
type SubmitResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// CancelResponse reports the outcome of a cancellation request.
type CancelResponse struct {
	TaskID    string `json:"task_id"`
	Cancelled bool   `json:"cancelled"`
	Message   string `json:"message,omitempty"`
}

// ExtractRequest asks for metadata without creating a task.
type ExtractRequest struct {
	URL      string `json:"url"`
	Playlist bool   `json:"playlist,omitempty"`
}

// ExtractResponse carries extracted metadata for a video or a playlist.
type ExtractResponse struct {
	IsPlaylist bool                    `json:"is_playlist"`
	Video      *media.Metadata         `json:"video,omitempty"`
	Playlist   *media.PlaylistMetadata `json:"playlist,omitempty"`
}

// SubtitlesResponse maps language codes to downloaded subtitle files,
// with display names resolved for each code.
type SubtitlesResponse struct {
	URL       string            `json:"url"`
	Files     map[string]string `json:"subtitle_files"`
	Languages map[string]string `json:"languages,omitempty"`
}

// ThumbnailResponse names the downloaded thumbnail file.
type ThumbnailResponse struct {
	URL  string `json:"url"`
	File string `json:"thumbnail_file"`
}

// ConnectionStats summarizes the WebSocket hub registries.
type ConnectionStats struct {
	Active     int `json:"active_connections"`
	Total      int `json:"total_connections"`
	Subscribed int `json:"active_tasks"`
	Max        int `json:"max_connections"`
}

// ServerStatus aggregates daemon runtime information for API consumers.
type ServerStatus struct {
	Version                string          `json:"version"`
	UptimeSeconds          float64         `json:"uptime"`
	ActiveDownloads        int             `json:"active_downloads"`
	TotalDownloads         int64           `json:"total_downloads"`
	MemoryUsageMB          float64         `json:"memory_usage"`
	DiskFreeMB             uint64          `json:"disk_space"`
	MaxConcurrentDownloads int             `json:"max_concurrent_downloads"`
	SupportedFormats       []string        `json:"supported_formats"`
	SupportedQualities     []int           `json:"supported_qualities"`
	FFmpegAvailable        bool            `json:"ffmpeg_available"`
	Connections            ConnectionStats `json:"connections"`
	Timestamp              string          `json:"timestamp"`
}

// HealthStatus is the lightweight liveness payload.
type HealthStatus struct {
	Status       string             `json:"status"`
	Version      string             `json:"version"`
	Timestamp    string             `json:"timestamp"`
	Dependencies []DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// CheckResult mirrors a preflight check outcome.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// HistoryListResponse wraps archived download records.
type HistoryListResponse struct {
	Entries []*history.Entry `json:"entries"`
	Count   int              `json:"count"`
}

// HistoryClearResponse reports how many archive rows were removed.
type HistoryClearResponse struct {
	Removed int64 `json:"removed"`
}

// LogStreamResponse carries buffered log events plus the cursor for the
// next fetch.
type LogStreamResponse struct {
	Events []logging.LogEvent `json:"events"`
	Next   uint64             `json:"next"`
}

// ErrorResponse is the uniform error payload for HTTP handlers.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
