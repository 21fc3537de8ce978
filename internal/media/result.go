package media

import "time"

// Result is the closed set of terminal outcomes a task can produce. The
// concrete types are SingleResult, PlaylistResult and BatchResult; nothing
// outside this package can add to the set.
type Result interface {
	isResult()
}

// SingleResult is the outcome of one video retrieval.
type SingleResult struct {
	TaskID   string    `json:"task_id"`
	Status   string    `json:"status"`
	Metadata *Metadata `json:"video_metadata,omitempty"`

	VideoFile     string            `json:"video_file,omitempty"`
	AudioFile     string            `json:"audio_file,omitempty"`
	SubtitleFiles map[string]string `json:"subtitle_files,omitempty"`
	ThumbnailFile string            `json:"thumbnail_file,omitempty"`

	Filesize     int64   `json:"filesize,omitempty"`
	DownloadTime float64 `json:"download_time,omitempty"`
	AverageSpeed float64 `json:"average_speed,omitempty"`

	Error     string `json:"error,omitempty"`
	ErrorType string `json:"error_type,omitempty"`

	StartedAt   time.Time `json:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

func (*SingleResult) isResult() {}

// Succeeded reports whether the retrieval finished with files on disk.
func (r *SingleResult) Succeeded() bool {
	return r != nil && r.Status == "completed"
}

// PlaylistResult aggregates the per-entry outcomes of a playlist retrieval.
type PlaylistResult struct {
	PlaylistID string            `json:"playlist_id"`
	Metadata   *PlaylistMetadata `json:"playlist_metadata,omitempty"`

	TotalVideos         int `json:"total_videos"`
	SuccessfulDownloads int `json:"successful_downloads"`
	FailedDownloads     int `json:"failed_downloads"`

	Results []*SingleResult `json:"results"`

	TotalFilesize     int64   `json:"total_filesize,omitempty"`
	TotalDownloadTime float64 `json:"total_download_time,omitempty"`

	StartedAt   time.Time `json:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

func (*PlaylistResult) isResult() {}

// BatchResult aggregates the per-URL outcomes of a batch retrieval.
type BatchResult struct {
	BatchID string `json:"batch_id"`

	TotalVideos         int `json:"total_videos"`
	SuccessfulDownloads int `json:"successful_downloads"`
	FailedDownloads     int `json:"failed_downloads"`

	Results []*SingleResult `json:"results"`

	TotalFilesize     int64   `json:"total_filesize,omitempty"`
	TotalDownloadTime float64 `json:"total_download_time,omitempty"`

	StartedAt   time.Time `json:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

func (*BatchResult) isResult() {}

// Summarize fills the aggregate counters from the individual results.
func (r *PlaylistResult) Summarize() {
	success, failed, size := tally(r.Results)
	r.SuccessfulDownloads = success
	r.FailedDownloads = failed
	r.TotalFilesize = size
}

// Summarize fills the aggregate counters from the individual results.
func (r *BatchResult) Summarize() {
	success, failed, size := tally(r.Results)
	r.SuccessfulDownloads = success
	r.FailedDownloads = failed
	r.TotalFilesize = size
}

func tally(results []*SingleResult) (success, failed int, size int64) {
	for _, res := range results {
		if res.Succeeded() {
			success++
			size += res.Filesize
		} else {
			failed++
		}
	}
	return success, failed, size
}
