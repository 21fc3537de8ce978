package media

import "time"

// Stages stamped on progress events while work is in flight.
const (
	StageExtracting  = "extracting"
	StageDownloading = "downloading"
	StageRendering   = "rendering"
)

// ProgressEvent is one observed step of a retrieval, published while the
// external tools run. Percent is 0-100 when known and -1 when the total
// size has not been reported yet.
type ProgressEvent struct {
	TaskID          string    `json:"task_id"`
	Stage           string    `json:"stage"`
	Percent         float64   `json:"percent"`
	Message         string    `json:"message,omitempty"`
	Filename        string    `json:"filename,omitempty"`
	TotalBytes      int64     `json:"total_bytes,omitempty"`
	DownloadedBytes int64     `json:"downloaded_bytes,omitempty"`
	Speed           float64   `json:"speed,omitempty"`
	ETA             int       `json:"eta,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// ProgressFunc receives progress events as a retrieval advances. Callbacks
// must not block; slow consumers drop events instead of stalling downloads.
type ProgressFunc func(ProgressEvent)
