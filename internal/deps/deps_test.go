package deps

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeStub(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}

func TestCheckBinariesMixedAvailability(t *testing.T) {
	ytdlp := writeStub(t, t.TempDir(), "yt-dlp")

	statuses := CheckBinaries([]Requirement{
		{Name: "yt-dlp", Command: ytdlp, Description: "media downloader"},
		{Name: "FFmpeg", Command: "clearly-not-present-binary", Optional: true},
	})
	if len(statuses) != 2 {
		t.Fatalf("statuses = %d, want 2", len(statuses))
	}
	if !statuses[0].Available || statuses[0].Detail != "" {
		t.Fatalf("stub tool not reported available: %+v", statuses[0])
	}
	if statuses[1].Available {
		t.Fatal("missing tool reported available")
	}
	if !statuses[1].Optional {
		t.Fatal("optional flag not carried through")
	}
	if statuses[1].Detail == "" {
		t.Fatal("missing tool carries no detail")
	}
}

func TestResolveExplicitPath(t *testing.T) {
	tool := writeStub(t, t.TempDir(), "yt-dlp")

	status := Resolve("yt-dlp", tool, "media downloader")
	if !status.Available {
		t.Fatalf("explicit path did not resolve: %q", status.Detail)
	}
	if status.Command != tool {
		t.Fatalf("command = %q, want %q", status.Command, tool)
	}
}

func TestResolvePathLookup(t *testing.T) {
	binDir := t.TempDir()
	tool := writeStub(t, binDir, "ffmpeg")

	pathEntries := []string{binDir}
	if current := os.Getenv("PATH"); current != "" {
		pathEntries = append(pathEntries, current)
	}
	t.Setenv("PATH", strings.Join(pathEntries, string(os.PathListSeparator)))

	status := Resolve("ffmpeg", "ffmpeg", "stream muxer")
	if !status.Available {
		t.Fatalf("PATH lookup failed: %q", status.Detail)
	}
	if status.Command != tool {
		t.Fatalf("command = %q, want %q", status.Command, tool)
	}
}

func TestResolveMissingBinary(t *testing.T) {
	t.Setenv("PATH", "")

	status := Resolve("yt-dlp", "clearly-not-present-binary", "")
	if status.Available {
		t.Fatal("resolution should fail")
	}
	if status.Detail == "" {
		t.Fatal("missing binary carries no detail")
	}
}

func TestResolveNonExecutableFile(t *testing.T) {
	tool := filepath.Join(t.TempDir(), "ffprobe")
	if err := os.WriteFile(tool, []byte("data"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	status := Resolve("ffprobe", tool, "")
	if status.Available {
		t.Fatal("non-executable file should be rejected")
	}
	if status.Detail == "" {
		t.Fatal("rejection carries no detail")
	}
}
