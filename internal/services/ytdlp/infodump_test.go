package ytdlp

import (
	"os"
	"path/filepath"
	"testing"
)

const videoDump = `{
  "id": "abc123",
  "title": "Test Video",
  "description": "A clip",
  "duration": 212.5,
  "uploader": "Channel",
  "upload_date": "20240115",
  "view_count": 1000,
  "like_count": 50,
  "thumbnail": "https://example.com/t.jpg",
  "webpage_url": "https://example.com/watch?v=abc123",
  "extractor": "youtube",
  "formats": [{}, {}, {}],
  "subtitles": {"en": []}
}`

const playlistDump = `{
  "_type": "playlist",
  "id": "PL1",
  "title": "Mix",
  "uploader": "Channel",
  "webpage_url": "https://example.com/playlist?list=PL1",
  "entries": [
    {"id": "v1", "title": "One", "webpage_url": "https://example.com/watch?v=v1", "duration": 60},
    {"id": "v2", "title": "Two", "url": "https://example.com/watch?v=v2"}
  ]
}`

func TestParseProbeVideo(t *testing.T) {
	probe, err := parseProbe([]byte(videoDump))
	if err != nil {
		t.Fatalf("parseProbe failed: %v", err)
	}
	if probe.Kind != ProbeVideo || probe.Video == nil || probe.Playlist != nil {
		t.Fatalf("unexpected probe shape: %+v", probe)
	}
	meta := probe.Video
	if meta.ID != "abc123" || meta.Title != "Test Video" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if meta.Duration != 212.5 || meta.FormatCount != 3 || !meta.HasSubtitles {
		t.Fatalf("derived fields wrong: %+v", meta)
	}
}

func TestParseProbePlaylist(t *testing.T) {
	probe, err := parseProbe([]byte(playlistDump))
	if err != nil {
		t.Fatalf("parseProbe failed: %v", err)
	}
	if probe.Kind != ProbePlaylist || probe.Playlist == nil {
		t.Fatalf("unexpected probe shape: %+v", probe)
	}
	meta := probe.Playlist
	if meta.EntryCount != 2 || len(meta.Entries) != 2 {
		t.Fatalf("unexpected entry count: %+v", meta)
	}
	if meta.Entries[0].Index != 0 || meta.Entries[1].Index != 1 {
		t.Fatalf("entry indices wrong: %+v", meta.Entries)
	}
	if meta.Entries[0].URL != "https://example.com/watch?v=v1" {
		t.Fatalf("webpage_url not preferred: %q", meta.Entries[0].URL)
	}
	if meta.Entries[1].URL != "https://example.com/watch?v=v2" {
		t.Fatalf("url fallback missing: %q", meta.Entries[1].URL)
	}
}

func TestParseProbeRejectsGarbage(t *testing.T) {
	if _, err := parseProbe([]byte("")); err == nil {
		t.Fatal("expected error for empty dump")
	}
	if _, err := parseProbe([]byte("{}")); err == nil {
		t.Fatal("expected error for dump without video fields")
	}
	if _, err := parseProbe([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid json")
	}
}

func writeFixture(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestFindSubtitleFiles(t *testing.T) {
	dir := t.TempDir()
	en := writeFixture(t, dir, "GRABIT_Test_Video.en.vtt")
	de := writeFixture(t, dir, "GRABIT_Test_Video.de.srt")
	writeFixture(t, dir, "GRABIT_Test_Video.mp4")
	writeFixture(t, dir, "notes.txt")

	found := FindSubtitleFiles(dir, []string{"en", "de", "fr"})
	if len(found) != 2 {
		t.Fatalf("found %d files, want 2: %v", len(found), found)
	}
	if found["en"] != en || found["de"] != de {
		t.Fatalf("unexpected mapping: %v", found)
	}
	if _, ok := found["fr"]; ok {
		t.Fatal("fr should be absent")
	}
}

func TestFindThumbnailFilePrefersTitleMatch(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "other.jpg")
	want := writeFixture(t, dir, "GRABIT_my_clip.webp")

	if got := FindThumbnailFile(dir, "my_clip"); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestFindThumbnailFileFallsBackToNewest(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "a.png")

	if got := FindThumbnailFile(dir, "missing-title"); got == "" {
		t.Fatal("expected fallback to an existing image")
	}
	if got := FindThumbnailFile(t.TempDir(), "x"); got != "" {
		t.Fatalf("expected empty result for empty dir, got %q", got)
	}
}
