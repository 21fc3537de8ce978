package ytdlp

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"grabit/internal/media"
)

// Probe is the outcome of a metadata extraction: exactly one of Video or
// Playlist is set, indicated by Kind.
type Probe struct {
	Kind     ProbeKind
	Video    *media.Metadata
	Playlist *media.PlaylistMetadata
}

// ProbeKind distinguishes what a URL resolved to.
type ProbeKind string

const (
	ProbeVideo    ProbeKind = "video"
	ProbePlaylist ProbeKind = "playlist"
)

// infoDump mirrors the fields of a yt-dlp single-json info dump the daemon
// cares about. Playlists carry Type "playlist" and an Entries list.
type infoDump struct {
	Type        string                     `json:"_type"`
	ID          string                     `json:"id"`
	Title       string                     `json:"title"`
	Description string                     `json:"description"`
	Duration    float64                    `json:"duration"`
	Uploader    string                     `json:"uploader"`
	UploadDate  string                     `json:"upload_date"`
	ViewCount   int64                      `json:"view_count"`
	LikeCount   int64                      `json:"like_count"`
	Thumbnail   string                     `json:"thumbnail"`
	WebpageURL  string                     `json:"webpage_url"`
	Extractor   string                     `json:"extractor"`
	URL         string                     `json:"url"`
	Formats     []struct{}                 `json:"formats"`
	Subtitles   map[string]json.RawMessage `json:"subtitles"`
	Entries     []infoDump                 `json:"entries"`
}

func parseProbe(raw []byte) (*Probe, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, errors.New("empty info dump")
	}
	var dump infoDump
	if err := json.Unmarshal([]byte(trimmed), &dump); err != nil {
		return nil, err
	}
	if dump.Type == "playlist" || len(dump.Entries) > 0 {
		return &Probe{Kind: ProbePlaylist, Playlist: playlistMetadata(&dump)}, nil
	}
	if dump.ID == "" && dump.Title == "" {
		return nil, errors.New("info dump has no video fields")
	}
	return &Probe{Kind: ProbeVideo, Video: videoMetadata(&dump)}, nil
}

func videoMetadata(dump *infoDump) *media.Metadata {
	title := dump.Title
	if title == "" {
		title = "Unknown"
	}
	return &media.Metadata{
		ID:           dump.ID,
		Title:        title,
		Description:  dump.Description,
		Duration:     dump.Duration,
		Uploader:     dump.Uploader,
		UploadDate:   dump.UploadDate,
		ViewCount:    dump.ViewCount,
		LikeCount:    dump.LikeCount,
		Thumbnail:    dump.Thumbnail,
		WebpageURL:   dump.WebpageURL,
		Extractor:    dump.Extractor,
		FormatCount:  len(dump.Formats),
		HasSubtitles: len(dump.Subtitles) > 0,
	}
}

func playlistMetadata(dump *infoDump) *media.PlaylistMetadata {
	meta := &media.PlaylistMetadata{
		ID:          dump.ID,
		Title:       dump.Title,
		Description: dump.Description,
		Uploader:    dump.Uploader,
		WebpageURL:  dump.WebpageURL,
	}
	for i := range dump.Entries {
		entry := &dump.Entries[i]
		entryURL := entry.WebpageURL
		if entryURL == "" {
			entryURL = entry.URL
		}
		meta.Entries = append(meta.Entries, media.PlaylistEntry{
			Index:    i,
			ID:       entry.ID,
			Title:    entry.Title,
			URL:      entryURL,
			Duration: entry.Duration,
			Uploader: entry.Uploader,
		})
	}
	meta.EntryCount = len(meta.Entries)
	return meta
}

var subtitleExtensions = map[string]struct{}{
	".vtt": {},
	".srt": {},
	".ass": {},
}

// FindSubtitleFiles locates subtitle files written for the requested
// languages. yt-dlp names them <base>.<lang>.<ext>.
func FindSubtitleFiles(dir string, langs []string) map[string]string {
	found := make(map[string]string)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return found
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if _, ok := subtitleExtensions[ext]; !ok {
			continue
		}
		for _, lang := range langs {
			if _, taken := found[lang]; taken {
				continue
			}
			if strings.Contains(strings.ToLower(name), "."+strings.ToLower(lang)+".") {
				found[lang] = filepath.Join(dir, name)
			}
		}
	}
	return found
}

var thumbnailExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

// FindThumbnailFile locates the thumbnail image written for a title,
// falling back to the newest image in the directory.
func FindThumbnailFile(dir, title string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	needle := strings.ToLower(strings.TrimSpace(title))
	var newest string
	var newestMod int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if _, ok := thumbnailExtensions[ext]; !ok {
			continue
		}
		path := filepath.Join(dir, name)
		if needle != "" && strings.Contains(strings.ToLower(name), needle) {
			return path
		}
		if info, err := entry.Info(); err == nil {
			if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
				newest = path
				newestMod = mod
			}
		}
	}
	return newest
}
