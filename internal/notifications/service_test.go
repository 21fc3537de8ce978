package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"grabit/internal/config"
	"grabit/internal/notifications"
)

// recorder captures the last publish that reached the ntfy stand-in.
type recorder struct {
	title    string
	body     string
	tags     string
	priority string
}

// stubNtfy starts an ntfy stand-in answering with status and returns a
// service pointed at it.
func stubNtfy(t *testing.T, rec *recorder, status int) notifications.Service {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("publish used %s, want POST", r.Method)
		}
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		rec.title = r.Header.Get("Title")
		rec.tags = r.Header.Get("Tags")
		rec.priority = r.Header.Get("Priority")
		rec.body = string(raw)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.RequestTimeout = 5
	return notifications.NewService(&cfg)
}

func TestNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyDownloadCompleted(context.Background(), "Example", "/tmp/example.mp4", 1024); err != nil {
		t.Fatalf("noop notifier returned %v", err)
	}
}

func TestNotificationRendering(t *testing.T) {
	cases := []struct {
		name     string
		send     func(svc notifications.Service) error
		title    string
		body     string
		tags     string
		priority string
	}{
		{
			name: "download completed",
			send: func(svc notifications.Service) error {
				return svc.NotifyDownloadCompleted(context.Background(), "Ocean Documentary", "/downloads/GRABIT_Ocean Documentary.mp4", 5*1024*1024)
			},
			title: "Grabit - Download Complete",
			body:  "✅ Download complete: Ocean Documentary\nFile: GRABIT_Ocean Documentary.mp4 (5.00 MiB)",
			tags:  "grabit,download,completed",
		},
		{
			name: "download completed without file details",
			send: func(svc notifications.Service) error {
				return svc.NotifyDownloadCompleted(context.Background(), "  ", "", 0)
			},
			title: "Grabit - Download Complete",
			body:  "✅ Download complete: video",
			tags:  "grabit,download,completed",
		},
		{
			name: "playlist completed",
			send: func(svc notifications.Service) error {
				return svc.NotifyPlaylistCompleted(context.Background(), "Lecture Series", 12, 0, 2048)
			},
			title: "Grabit - Playlist Complete",
			body:  "Playlist complete: Lecture Series (12 videos, 2.00 KiB)",
			tags:  "grabit,playlist,completed",
		},
		{
			name: "playlist completed with failures",
			send: func(svc notifications.Service) error {
				return svc.NotifyPlaylistCompleted(context.Background(), "Lecture Series", 10, 2, 2048)
			},
			title: "Grabit - Playlist Complete",
			body:  "Playlist complete: Lecture Series (10 succeeded, 2 failed)",
			tags:  "grabit,playlist,completed",
		},
		{
			name: "batch completed",
			send: func(svc notifications.Service) error {
				return svc.NotifyBatchCompleted(context.Background(), 3, 0, 1024)
			},
			title: "Grabit - Batch Complete",
			body:  "Batch complete: 3 videos downloaded (1.00 KiB)",
			tags:  "grabit,batch,completed",
		},
		{
			name: "download failed",
			send: func(svc notifications.Service) error {
				return svc.NotifyDownloadFailed(context.Background(), "https://example.com/watch?v=abc", errors.New("network unreachable"))
			},
			title:    "Grabit - Download Failed",
			body:     "❌ Download failed: https://example.com/watch?v=abc\nnetwork unreachable",
			tags:     "grabit,error,alert",
			priority: "high",
		},
		{
			name: "test notification",
			send: func(svc notifications.Service) error {
				return svc.TestNotification(context.Background())
			},
			title:    "Grabit - Test",
			body:     "🧪 Test notification from grabit",
			tags:     "grabit,test",
			priority: "low",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var rec recorder
			svc := stubNtfy(t, &rec, http.StatusOK)
			if err := tc.send(svc); err != nil {
				t.Fatalf("notify: %v", err)
			}
			if rec.title != tc.title {
				t.Errorf("title = %q, want %q", rec.title, tc.title)
			}
			if rec.body != tc.body {
				t.Errorf("body = %q, want %q", rec.body, tc.body)
			}
			if rec.tags != tc.tags {
				t.Errorf("tags = %q, want %q", rec.tags, tc.tags)
			}
			if rec.priority != tc.priority {
				t.Errorf("priority = %q, want %q", rec.priority, tc.priority)
			}
		})
	}
}

func TestServerErrorSurfacesStatus(t *testing.T) {
	var rec recorder
	svc := stubNtfy(t, &rec, http.StatusNotFound)

	err := svc.TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Fatalf("error %v should name the status code", err)
	}
}
