package media

import (
	"fmt"
	"net/url"
	"strings"

	"grabit/internal/services"
)

// DownloadRequest describes a single video retrieval.
type DownloadRequest struct {
	URL               string   `json:"url"`
	Quality           int      `json:"quality,omitempty"`
	Format            string   `json:"format,omitempty"`
	IncludeAudio      bool     `json:"include_audio"`
	IncludeSubtitles  bool     `json:"include_subtitles,omitempty"`
	SubtitleLanguages []string `json:"subtitle_languages,omitempty"`
	DownloadThumbnail bool     `json:"download_thumbnail,omitempty"`
	CustomFilename    string   `json:"custom_filename,omitempty"`
}

// ApplyDefaults fills unset quality/format fields from configured defaults.
func (r *DownloadRequest) ApplyDefaults(quality int, format string) {
	if r.Quality == 0 {
		r.Quality = quality
	}
	if strings.TrimSpace(r.Format) == "" {
		r.Format = format
	}
}

// Validate checks the request against the supported bounds.
func (r *DownloadRequest) Validate() error {
	if err := validateURL(r.URL); err != nil {
		return err
	}
	if !QualityInRange(r.Quality) {
		return services.Wrap(services.ErrValidation, "request", "quality",
			fmt.Sprintf("%d outside supported range %d-%d", r.Quality, MinQuality, MaxQuality), nil)
	}
	if !FormatSupported(r.Format) {
		return services.Wrap(services.ErrValidation, "request", "format",
			fmt.Sprintf("%q is not one of %v", r.Format, SupportedFormats()), nil)
	}
	return nil
}

// PlaylistRequest describes a playlist retrieval with selection options.
// Selection applies in a fixed order: the explicit index list (or all entries
// when DownloadAll is set), then the start/end window, then the max-count
// truncation.
type PlaylistRequest struct {
	URL               string   `json:"url"`
	Quality           int      `json:"quality,omitempty"`
	Format            string   `json:"format,omitempty"`
	IncludeAudio      bool     `json:"include_audio"`
	IncludeSubtitles  bool     `json:"include_subtitles,omitempty"`
	SubtitleLanguages []string `json:"subtitle_languages,omitempty"`
	DownloadThumbnail bool     `json:"download_thumbnail,omitempty"`

	DownloadAll     bool  `json:"download_all"`
	SelectedIndices []int `json:"selected_videos,omitempty"`
	StartIndex      *int  `json:"start_index,omitempty"`
	EndIndex        *int  `json:"end_index,omitempty"`
	MaxDownloads    *int  `json:"max_downloads,omitempty"`
}

// ApplyDefaults fills unset quality/format fields from configured defaults.
func (r *PlaylistRequest) ApplyDefaults(quality int, format string) {
	if r.Quality == 0 {
		r.Quality = quality
	}
	if strings.TrimSpace(r.Format) == "" {
		r.Format = format
	}
}

// Validate checks the request against the supported bounds.
func (r *PlaylistRequest) Validate() error {
	if err := validateURL(r.URL); err != nil {
		return err
	}
	if !QualityInRange(r.Quality) {
		return services.Wrap(services.ErrValidation, "request", "quality",
			fmt.Sprintf("%d outside supported range %d-%d", r.Quality, MinQuality, MaxQuality), nil)
	}
	if !FormatSupported(r.Format) {
		return services.Wrap(services.ErrValidation, "request", "format",
			fmt.Sprintf("%q is not one of %v", r.Format, SupportedFormats()), nil)
	}
	if !r.DownloadAll && len(r.SelectedIndices) == 0 {
		return services.Wrap(services.ErrValidation, "request", "selection",
			"selected_videos required when download_all is false", nil)
	}
	return nil
}

// BatchRequest describes retrieval of an explicit URL list.
type BatchRequest struct {
	URLs              []string `json:"urls"`
	Quality           int      `json:"quality,omitempty"`
	Format            string   `json:"format,omitempty"`
	IncludeAudio      bool     `json:"include_audio"`
	IncludeSubtitles  bool     `json:"include_subtitles,omitempty"`
	SubtitleLanguages []string `json:"subtitle_languages,omitempty"`
	DownloadThumbnail bool     `json:"download_thumbnail,omitempty"`

	ContinueOnError bool `json:"continue_on_error"`
	MaxConcurrent   int  `json:"max_concurrent,omitempty"`
}

// MaxBatchURLs bounds how many URLs a single batch may carry.
const MaxBatchURLs = 50

// ApplyDefaults fills unset quality/format fields from configured defaults.
func (r *BatchRequest) ApplyDefaults(quality int, format string) {
	if r.Quality == 0 {
		r.Quality = quality
	}
	if strings.TrimSpace(r.Format) == "" {
		r.Format = format
	}
}

// Validate checks the request against the supported bounds.
func (r *BatchRequest) Validate() error {
	if len(r.URLs) == 0 {
		return services.Wrap(services.ErrValidation, "request", "urls", "at least one url required", nil)
	}
	if len(r.URLs) > MaxBatchURLs {
		return services.Wrap(services.ErrValidation, "request", "urls",
			fmt.Sprintf("%d urls exceeds limit of %d", len(r.URLs), MaxBatchURLs), nil)
	}
	for _, u := range r.URLs {
		if err := validateURL(u); err != nil {
			return err
		}
	}
	if !QualityInRange(r.Quality) {
		return services.Wrap(services.ErrValidation, "request", "quality",
			fmt.Sprintf("%d outside supported range %d-%d", r.Quality, MinQuality, MaxQuality), nil)
	}
	if !FormatSupported(r.Format) {
		return services.Wrap(services.ErrValidation, "request", "format",
			fmt.Sprintf("%q is not one of %v", r.Format, SupportedFormats()), nil)
	}
	if r.MaxConcurrent < 0 {
		return services.Wrap(services.ErrValidation, "request", "max_concurrent", "must not be negative", nil)
	}
	return nil
}

// SingleRequest derives the per-URL request sharing the batch's options.
func (r *BatchRequest) SingleRequest(rawURL string) DownloadRequest {
	return DownloadRequest{
		URL:               rawURL,
		Quality:           r.Quality,
		Format:            r.Format,
		IncludeAudio:      r.IncludeAudio,
		IncludeSubtitles:  r.IncludeSubtitles,
		SubtitleLanguages: r.SubtitleLanguages,
		DownloadThumbnail: r.DownloadThumbnail,
	}
}

// SingleRequest derives the per-entry request sharing the playlist's options.
func (r *PlaylistRequest) SingleRequest(entryURL string) DownloadRequest {
	return DownloadRequest{
		URL:               entryURL,
		Quality:           r.Quality,
		Format:            r.Format,
		IncludeAudio:      r.IncludeAudio,
		IncludeSubtitles:  r.IncludeSubtitles,
		SubtitleLanguages: r.SubtitleLanguages,
		DownloadThumbnail: r.DownloadThumbnail,
	}
}

// ThumbnailRequest describes a thumbnail fetch.
type ThumbnailRequest struct {
	URL     string `json:"url"`
	Quality string `json:"quality,omitempty"`
}

// SubtitleRequest describes a subtitle fetch.
type SubtitleRequest struct {
	URL           string   `json:"url"`
	Languages     []string `json:"languages,omitempty"`
	AutoGenerated bool     `json:"auto_generated"`
	Format        string   `json:"format,omitempty"`
}

func validateURL(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return services.Wrap(services.ErrValidation, "request", "url", "url must not be empty", nil)
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return services.Wrap(services.ErrValidation, "request", "url", "url is not parseable", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return services.Wrap(services.ErrValidation, "request", "url",
			fmt.Sprintf("unsupported scheme %q", parsed.Scheme), nil)
	}
	if parsed.Host == "" {
		return services.Wrap(services.ErrValidation, "request", "url", "url has no host", nil)
	}
	return nil
}
