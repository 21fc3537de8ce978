package ipc

import (
	"grabit/internal/api"
	"grabit/internal/history"
)

// StatusRequest asks for the full daemon status payload.
type StatusRequest struct{}

// ConnectionStats mirrors the HTTP API hub DTO for internal IPC callers.
type ConnectionStats = api.ConnectionStats

// DependencyStatus mirrors the HTTP API dependency DTO so status output
// renders identically whichever transport supplied it.
type DependencyStatus = api.DependencyStatus

// StatusResponse represents combined daemon and download status information.
type StatusResponse struct {
	Running         bool               `json:"running"`
	PID             int                `json:"pid"`
	Version         string             `json:"version"`
	StartedAt       string             `json:"started_at"`
	UptimeSeconds   float64            `json:"uptime_seconds"`
	BindAddress     string             `json:"bind_address"`
	ActiveDownloads int                `json:"active_downloads"`
	TotalDownloads  int64              `json:"total_downloads"`
	MaxConcurrent   int                `json:"max_concurrent"`
	Connections     ConnectionStats    `json:"connections"`
	DiskFreeMB      uint64             `json:"disk_free_mb"`
	MemoryUsageMB   float64            `json:"memory_usage_mb"`
	HistoryDBPath   string             `json:"history_db_path"`
	HistoryCount    int64              `json:"history_count"`
	LockPath        string             `json:"lock_path"`
	LogPath         string             `json:"log_path"`
	FFmpegAvailable bool               `json:"ffmpeg_available"`
	Dependencies    []DependencyStatus `json:"dependencies"`
}

// StopRequest asks the daemon process to shut down.
type StopRequest struct{}

// StopResponse acknowledges that shutdown is underway.
type StopResponse struct {
	Stopping bool `json:"stopping"`
}

// StatsRequest fetches lightweight counters without the full status payload.
type StatsRequest struct{}

// StatsResponse carries download counters and hub connection stats.
type StatsResponse struct {
	ActiveDownloads int             `json:"active_downloads"`
	TotalDownloads  int64           `json:"total_downloads"`
	Connections     ConnectionStats `json:"connections"`
}

// HistoryListRequest limits how many archive entries to return.
type HistoryListRequest struct {
	Limit int `json:"limit"`
}

// HistoryListResponse contains archive entries, newest first.
type HistoryListResponse struct {
	Entries []*history.Entry `json:"entries"`
}

// HistoryClearRequest removes all archive entries.
type HistoryClearRequest struct{}

// HistoryClearResponse reports number of removed entries.
type HistoryClearResponse struct {
	Removed int64 `json:"removed"`
}

// LogTailRequest retrieves recent daemon log lines.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse carries log lines and the next offset for follow mode.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// TestNotificationRequest sends a test ntfy notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports whether the notification was sent.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
