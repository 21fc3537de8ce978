package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"grabit/internal/config"
)

const userAgent = "Grabit/1.0.0"

// Service defines the notification surface exposed to the orchestrator.
type Service interface {
	NotifyDownloadCompleted(ctx context.Context, title, filePath string, fileSize int64) error
	NotifyPlaylistCompleted(ctx context.Context, title string, successful, failed int, totalSize int64) error
	NotifyBatchCompleted(ctx context.Context, successful, failed int, totalSize int64) error
	NotifyDownloadFailed(ctx context.Context, url string, cause error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// Without a topic every notification becomes a no-op.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: requestTimeout(cfg)},
	}
}

func requestTimeout(cfg *config.Config) time.Duration {
	if secs := cfg.Notifications.RequestTimeout; secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 10 * time.Second
}

// note is one rendered notification before it becomes HTTP headers and body.
type note struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyDownloadCompleted(ctx context.Context, title, filePath string, fileSize int64) error {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "video"
	}
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("✅ Download complete: %s", title))
	if filePath = strings.TrimSpace(filePath); filePath != "" {
		builder.WriteString(fmt.Sprintf("\nFile: %s", filepath.Base(filePath)))
	}
	if fileSize > 0 {
		builder.WriteString(fmt.Sprintf(" (%s)", formatBytes(fileSize)))
	}
	return n.publish(ctx, note{
		title: "Grabit - Download Complete",
		body:  builder.String(),
		tags:  []string{"grabit", "download", "completed"},
	})
}

func (n *ntfyService) NotifyPlaylistCompleted(ctx context.Context, title string, successful, failed int, totalSize int64) error {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "playlist"
	}

	var body string
	if failed == 0 {
		body = fmt.Sprintf("Playlist complete: %s (%d videos, %s)", title, successful, formatBytes(totalSize))
	} else {
		body = fmt.Sprintf("Playlist complete: %s (%d succeeded, %d failed)", title, successful, failed)
	}
	return n.publish(ctx, note{
		title: "Grabit - Playlist Complete",
		body:  body,
		tags:  []string{"grabit", "playlist", "completed"},
	})
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, successful, failed int, totalSize int64) error {
	var body string
	if failed == 0 {
		body = fmt.Sprintf("Batch complete: %d videos downloaded (%s)", successful, formatBytes(totalSize))
	} else {
		body = fmt.Sprintf("Batch complete: %d succeeded, %d failed", successful, failed)
	}
	return n.publish(ctx, note{
		title: "Grabit - Batch Complete",
		body:  body,
		tags:  []string{"grabit", "batch", "completed"},
	})
}

func (n *ntfyService) NotifyDownloadFailed(ctx context.Context, url string, cause error) error {
	var builder strings.Builder
	builder.WriteString("❌ Download failed")
	if url = strings.TrimSpace(url); url != "" {
		builder.WriteString(": ")
		builder.WriteString(url)
	}
	builder.WriteString("\n")
	if cause != nil {
		builder.WriteString(strings.TrimSpace(cause.Error()))
	} else {
		builder.WriteString("unknown error")
	}
	return n.publish(ctx, note{
		title:    "Grabit - Download Failed",
		body:     builder.String(),
		tags:     []string{"grabit", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.publish(ctx, note{
		title:    "Grabit - Test",
		body:     "🧪 Test notification from grabit",
		tags:     []string{"grabit", "test"},
		priority: "low",
	})
}

func (n *ntfyService) publish(ctx context.Context, msg note) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	decorate(req.Header, msg)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// decorate maps note metadata onto the ntfy header scheme. The body travels
// as plain text, everything else as headers.
func decorate(header http.Header, msg note) {
	header.Set("User-Agent", userAgent)
	header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		header.Set("Priority", msg.priority)
	}
}

func formatBytes(value int64) string {
	const (
		kiB = 1024
		miB = kiB * 1024
		giB = miB * 1024
	)
	switch {
	case value >= giB:
		return fmt.Sprintf("%.2f GiB", float64(value)/float64(giB))
	case value >= miB:
		return fmt.Sprintf("%.2f MiB", float64(value)/float64(miB))
	case value >= kiB:
		return fmt.Sprintf("%.2f KiB", float64(value)/float64(kiB))
	default:
		return fmt.Sprintf("%d B", value)
	}
}

type noopService struct{}

func (noopService) NotifyDownloadCompleted(context.Context, string, string, int64) error { return nil }
func (noopService) NotifyPlaylistCompleted(context.Context, string, int, int, int64) error {
	return nil
}
func (noopService) NotifyBatchCompleted(context.Context, int, int, int64) error { return nil }
func (noopService) NotifyDownloadFailed(context.Context, string, error) error   { return nil }
func (noopService) TestNotification(context.Context) error                      { return nil }
