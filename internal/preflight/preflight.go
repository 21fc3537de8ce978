package preflight

import (
	"context"

	"grabit/internal/config"
)

// Result is the outcome of one readiness check, with a display-friendly
// detail line.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// minFreeBytes is the smallest download-directory headroom considered
// healthy at startup.
const minFreeBytes = 500 << 20

// RunAll runs every check that applies to cfg. The notification endpoint is
// only probed when a topic is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Download directory", cfg.Paths.DownloadDir),
		CheckDirectoryAccess("Temp directory", cfg.Paths.TempDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDiskSpace("Disk space", cfg.Paths.DownloadDir, minFreeBytes),
	}

	if cfg.Notifications.NtfyTopic != "" {
		results = append(results, CheckNotifications(ctx, cfg.Notifications.NtfyTopic))
	}

	return results
}
