package media

// Metadata carries the extracted properties of a single video.
type Metadata struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description,omitempty"`
	Duration     float64 `json:"duration,omitempty"`
	Uploader     string  `json:"uploader,omitempty"`
	UploadDate   string  `json:"upload_date,omitempty"`
	ViewCount    int64   `json:"view_count,omitempty"`
	LikeCount    int64   `json:"like_count,omitempty"`
	Thumbnail    string  `json:"thumbnail,omitempty"`
	WebpageURL   string  `json:"webpage_url,omitempty"`
	Extractor    string  `json:"extractor,omitempty"`
	FormatCount  int     `json:"format_count,omitempty"`
	HasSubtitles bool    `json:"has_subtitles,omitempty"`
}

// PlaylistEntry is one position in an extracted playlist.
type PlaylistEntry struct {
	Index    int     `json:"index"`
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	Duration float64 `json:"duration,omitempty"`
	Uploader string  `json:"uploader,omitempty"`
}

// PlaylistMetadata carries the extracted properties of a playlist.
type PlaylistMetadata struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Uploader    string          `json:"uploader,omitempty"`
	WebpageURL  string          `json:"webpage_url,omitempty"`
	EntryCount  int             `json:"entry_count"`
	Entries     []PlaylistEntry `json:"entries"`
}

// SelectEntries applies the playlist request's selection rules to the
// extracted entries. Explicit indices are zero-based and out-of-range
// values are skipped. The start/end window and max-count truncation apply
// after index selection, in that order.
func (m *PlaylistMetadata) SelectEntries(req *PlaylistRequest) []PlaylistEntry {
	var selected []PlaylistEntry
	if req.DownloadAll || len(req.SelectedIndices) == 0 {
		selected = append(selected, m.Entries...)
	} else {
		for _, idx := range req.SelectedIndices {
			if idx < 0 || idx >= len(m.Entries) {
				continue
			}
			selected = append(selected, m.Entries[idx])
		}
	}

	if req.StartIndex != nil {
		start := *req.StartIndex
		if start < 0 {
			start = 0
		}
		if start >= len(selected) {
			selected = nil
		} else {
			selected = selected[start:]
		}
	}
	if req.EndIndex != nil {
		// EndIndex is inclusive and counted within the windowed slice.
		end := *req.EndIndex + 1
		if end < 0 {
			end = 0
		}
		if end < len(selected) {
			selected = selected[:end]
		}
	}
	if req.MaxDownloads != nil {
		limit := *req.MaxDownloads
		if limit < 0 {
			limit = 0
		}
		if len(selected) > limit {
			selected = selected[:limit]
		}
	}
	return selected
}
