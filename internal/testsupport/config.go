package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"grabit/internal/config"
)

// ConfigOption mutates the generated test configuration.
type ConfigOption func(tb testing.TB, base string, cfg *config.Config)

// NewConfig returns a config rooted in a fresh temp directory, with every
// path pointed under it and the server bound to an ephemeral port.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DownloadDir = filepath.Join(base, "downloads")
	cfg.Paths.TempDir = filepath.Join(base, "tmp")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Server.Bind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(t, base, &cfg)
	}
	return &cfg
}

// WithQualityCeiling overrides the direct-download quality ceiling.
func WithQualityCeiling(height int) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Downloads.DirectQualityCeiling = height
	}
}

// WithMaxConcurrent overrides the download concurrency cap.
func WithMaxConcurrent(limit int) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Downloads.MaxConcurrent = limit
	}
}

// WithStubbedBinaries drops no-op executables for names onto a fresh PATH
// entry so tool checks pass without the real binaries installed. Empty
// names stubs the standard external tool set.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(tb testing.TB, base string, _ *config.Config) {
		tb.Helper()
		if len(names) == 0 {
			names = []string{"yt-dlp", "ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(base, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			tb.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			stub := filepath.Join(binDir, name)
			if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				tb.Fatalf("write stub %s: %v", name, err)
			}
		}
		prev := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+prev); err != nil {
			tb.Fatalf("set PATH: %v", err)
		}
		tb.Cleanup(func() { _ = os.Setenv("PATH", prev) })
	}
}

// BaseDir recovers the temp root NewConfig generated for cfg.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DownloadDir)
}
