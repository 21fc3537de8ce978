package preflight

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"grabit/internal/config"
	"grabit/internal/deps"
)

// statfs is swapped in tests to simulate full filesystems.
var statfs = unix.Statfs

const probeTimeout = 5 * time.Second

// CheckDirectoryAccess verifies the directory exists and grants read, write,
// and traverse permission.
func CheckDirectoryAccess(name, path string) Result {
	if err := probeDirectory(path); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func probeDirectory(path string) error {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return errors.New("does not exist")
	case err != nil:
		return fmt.Errorf("stat: %w", err)
	case !info.IsDir():
		return errors.New("is not a directory")
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("insufficient permissions: %w", err)
	}
	return nil
}

// CheckDiskSpace verifies the filesystem holding path has at least minBytes
// of free space.
func CheckDiskSpace(name, path string, minBytes uint64) Result {
	var stat unix.Statfs_t
	if err := statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := uint64(stat.Bavail) * uint64(stat.Bsize)
	if free < minBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (%d MB free, need %d MB)", path, free>>20, minBytes>>20)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d MB free)", path, free>>20)}
}

// CheckNotifications verifies the ntfy endpoint answers.
func CheckNotifications(ctx context.Context, endpoint string) Result {
	const name = "Notifications"

	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return Result{Name: name, Detail: "missing ntfy topic"}
	}

	status, err := probeEndpoint(ctx, endpoint)
	switch {
	case err != nil:
		return Result{Name: name, Detail: fmt.Sprintf("endpoint check failed (%v)", err)}
	case status >= http.StatusBadRequest:
		return Result{Name: name, Detail: fmt.Sprintf("endpoint check failed (%d)", status)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// probeEndpoint issues a GET against the topic URL. ntfy publishes on POST
// only, so the probe never produces a visible notification.
func probeEndpoint(ctx context.Context, endpoint string) (int, error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	resp, err := (&http.Client{Timeout: probeTimeout}).Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// CheckSystemDeps evaluates the external binaries named in cfg. The daemon
// and the CLI status command share this list so the two never disagree about
// what grabit needs. ffmpeg and ffprobe are optional: without them only the
// split download path is unavailable.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "yt-dlp",
			Command:     cfg.Tools.YtDlp,
			Description: "Required for metadata extraction and downloads",
		},
		{
			Name:        "FFmpeg",
			Command:     cfg.Tools.FFmpeg,
			Description: "Required for the high-quality render path",
			Optional:    true,
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Tools.FFprobe,
			Description: "Used to inspect rendered output",
			Optional:    true,
		},
	})
}
