package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"grabit/internal/logging"
	"grabit/internal/media"
	"grabit/internal/testsupport"
)

func apiBase(t *testing.T, d *Daemon) string {
	t.Helper()
	addr := d.api.address()
	if addr == "" {
		t.Fatal("api server not listening")
	}
	return "http://" + addr
}

func doRequest(t *testing.T, method, url string, body any, token string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	payload := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			t.Fatalf("decode body %q: %v", raw, err)
		}
	}
	return resp.StatusCode, payload
}

func waitTaskStatus(t *testing.T, base, id, want string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		code, payload := doRequest(t, http.MethodGet, base+"/api/task/"+id, nil, "")
		if code == http.StatusOK {
			if status, _ := payload["status"].(string); status == want {
				return payload
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task %s never reached status %q", id, want)
	return nil
}

func TestAPISubmitSingleLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newTestDaemon(t, cfg)
	startDaemon(t, d)
	base := apiBase(t, d)

	code, payload := doRequest(t, http.MethodPost, base+"/api/download/single",
		map[string]any{"url": "https://example.com/watch?v=1"}, "")
	if code != http.StatusOK {
		t.Fatalf("submit status = %d, body %v", code, payload)
	}
	id, _ := payload["task_id"].(string)
	if id == "" {
		t.Fatalf("missing task_id in %v", payload)
	}
	if payload["status"] != "started" {
		t.Fatalf("status = %v", payload["status"])
	}

	final := waitTaskStatus(t, base, id, "completed")
	result, _ := final["result"].(map[string]any)
	if result == nil {
		t.Fatalf("missing result in %v", final)
	}
	if result["video_file"] != "/downloads/video.mp4" {
		t.Fatalf("video_file = %v", result["video_file"])
	}
}

func TestAPIDownloadValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newTestDaemon(t, cfg)
	startDaemon(t, d)
	base := apiBase(t, d)

	code, payload := doRequest(t, http.MethodPost, base+"/api/download/single",
		map[string]any{"url": "ftp://example.com/file"}, "")
	if code != http.StatusBadRequest {
		t.Fatalf("status = %d, body %v", code, payload)
	}
	if msg, _ := payload["error"].(string); !strings.Contains(msg, "scheme") {
		t.Fatalf("error = %v", payload["error"])
	}
}

func TestAPIExtract(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newTestDaemon(t, cfg)
	startDaemon(t, d)
	base := apiBase(t, d)

	code, payload := doRequest(t, http.MethodPost, base+"/api/extract",
		map[string]any{"url": "https://example.com/watch?v=1"}, "")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	video, _ := payload["video"].(map[string]any)
	if video == nil || video["title"] != "Test Video" {
		t.Fatalf("unexpected extract payload: %v", payload)
	}
	if payload["is_playlist"] != false {
		t.Fatalf("is_playlist = %v", payload["is_playlist"])
	}

	code, payload = doRequest(t, http.MethodPost, base+"/api/extract",
		map[string]any{"url": "https://example.com/playlist?list=a", "playlist": true}, "")
	if code != http.StatusOK {
		t.Fatalf("playlist status = %d", code)
	}
	if payload["is_playlist"] != true {
		t.Fatalf("is_playlist = %v", payload["is_playlist"])
	}
	playlist, _ := payload["playlist"].(map[string]any)
	if playlist == nil || playlist["title"] != "Test Playlist" {
		t.Fatalf("unexpected playlist payload: %v", payload)
	}
}

func TestAPITaskNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newTestDaemon(t, cfg)
	startDaemon(t, d)
	base := apiBase(t, d)

	code, _ := doRequest(t, http.MethodGet, base+"/api/task/missing", nil, "")
	if code != http.StatusNotFound {
		t.Fatalf("status = %d", code)
	}
	code, _ = doRequest(t, http.MethodDelete, base+"/api/task/missing", nil, "")
	if code != http.StatusNotFound {
		t.Fatalf("delete status = %d", code)
	}
}

func TestAPICancelRunningTask(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, fake := newTestDaemon(t, cfg)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	fake.downloadFn = func(ctx context.Context, taskID string, req media.DownloadRequest, onProgress media.ProgressFunc) (*media.SingleResult, error) {
		once.Do(func() { close(started) })
		<-release
		return &media.SingleResult{TaskID: taskID, Status: "completed"}, nil
	}
	startDaemon(t, d)
	base := apiBase(t, d)

	_, payload := doRequest(t, http.MethodPost, base+"/api/download/single",
		map[string]any{"url": "https://example.com/watch?v=1"}, "")
	id, _ := payload["task_id"].(string)
	if id == "" {
		t.Fatalf("missing task_id in %v", payload)
	}

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("download never started")
	}

	code, payload := doRequest(t, http.MethodDelete, base+"/api/task/"+id, nil, "")
	if code != http.StatusOK {
		t.Fatalf("cancel status = %d", code)
	}
	if payload["cancelled"] != true {
		t.Fatalf("cancelled = %v", payload["cancelled"])
	}

	code, payload = doRequest(t, http.MethodDelete, base+"/api/task/"+id, nil, "")
	if code != http.StatusOK || payload["cancelled"] != false {
		t.Fatalf("second cancel: status %d payload %v", code, payload)
	}

	close(release)
}

func TestAPITasksList(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newTestDaemon(t, cfg)
	startDaemon(t, d)
	base := apiBase(t, d)

	for i := 0; i < 2; i++ {
		url := fmt.Sprintf("https://example.com/watch?v=%d", i)
		code, _ := doRequest(t, http.MethodPost, base+"/api/download/single", map[string]any{"url": url}, "")
		if code != http.StatusOK {
			t.Fatalf("submit %d failed with %d", i, code)
		}
	}

	code, payload := doRequest(t, http.MethodGet, base+"/api/tasks", nil, "")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if count, _ := payload["count"].(float64); count < 2 {
		t.Fatalf("count = %v", payload["count"])
	}
}

func TestAPISubtitlesAndThumbnail(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newTestDaemon(t, cfg)
	startDaemon(t, d)
	base := apiBase(t, d)

	code, payload := doRequest(t, http.MethodPost, base+"/api/subtitles",
		map[string]any{"url": "https://example.com/watch?v=1", "languages": []string{"en"}}, "")
	if code != http.StatusOK {
		t.Fatalf("subtitles status = %d", code)
	}
	files, _ := payload["subtitle_files"].(map[string]any)
	if files["en"] != "/downloads/video.en.srt" {
		t.Fatalf("subtitle files = %v", payload["subtitle_files"])
	}
	names, _ := payload["languages"].(map[string]any)
	if names["en"] != "English" {
		t.Fatalf("languages = %v", payload["languages"])
	}

	code, payload = doRequest(t, http.MethodPost, base+"/api/thumbnail",
		map[string]any{"url": "https://example.com/watch?v=1"}, "")
	if code != http.StatusOK {
		t.Fatalf("thumbnail status = %d", code)
	}
	if payload["thumbnail_file"] != "/downloads/video.jpg" {
		t.Fatalf("thumbnail_file = %v", payload["thumbnail_file"])
	}
}

func TestAPIStatusShape(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newTestDaemon(t, cfg)
	startDaemon(t, d)
	base := apiBase(t, d)

	code, payload := doRequest(t, http.MethodGet, base+"/api/status", nil, "")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if payload["version"] != "1.0.0" {
		t.Fatalf("version = %v", payload["version"])
	}
	formats, _ := payload["supported_formats"].([]any)
	if len(formats) == 0 || formats[0] != "mp4" {
		t.Fatalf("supported_formats = %v", payload["supported_formats"])
	}
	if _, ok := payload["connections"].(map[string]any); !ok {
		t.Fatalf("connections missing: %v", payload)
	}
	if payload["max_concurrent_downloads"] != float64(cfg.Downloads.MaxConcurrent) {
		t.Fatalf("max_concurrent_downloads = %v", payload["max_concurrent_downloads"])
	}
}

func TestAPIHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newTestDaemon(t, cfg)
	startDaemon(t, d)
	base := apiBase(t, d)

	code, payload := doRequest(t, http.MethodGet, base+"/api/health", nil, "")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if payload["status"] != "healthy" {
		t.Fatalf("health status = %v", payload["status"])
	}
	if _, ok := payload["dependencies"].([]any); !ok {
		t.Fatalf("dependencies missing: %v", payload)
	}
}

func TestAPIHistoryAfterDownload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newTestDaemon(t, cfg)
	startDaemon(t, d)
	base := apiBase(t, d)

	_, payload := doRequest(t, http.MethodPost, base+"/api/download/single",
		map[string]any{"url": "https://example.com/watch?v=1"}, "")
	id, _ := payload["task_id"].(string)
	waitTaskStatus(t, base, id, "completed")

	deadline := time.Now().Add(5 * time.Second)
	for {
		code, payload := doRequest(t, http.MethodGet, base+"/api/history", nil, "")
		if code != http.StatusOK {
			t.Fatalf("history status = %d", code)
		}
		if count, _ := payload["count"].(float64); count >= 1 {
			entries, _ := payload["entries"].([]any)
			entry, _ := entries[0].(map[string]any)
			if entry["url"] != "https://example.com/watch?v=1" {
				t.Fatalf("entry url = %v", entry["url"])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("history entry never appeared")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAPIHistoryDisabledReturnsEmpty(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.History.Enabled = false
	d, _ := newTestDaemon(t, cfg)
	startDaemon(t, d)
	base := apiBase(t, d)

	code, payload := doRequest(t, http.MethodGet, base+"/api/history", nil, "")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if count, _ := payload["count"].(float64); count != 0 {
		t.Fatalf("count = %v", payload["count"])
	}
}

func TestAPIAuthToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Server.APIToken = "sekret"
	d, _ := newTestDaemon(t, cfg)
	startDaemon(t, d)
	base := apiBase(t, d)

	code, _ := doRequest(t, http.MethodGet, base+"/api/status", nil, "")
	if code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", code)
	}
	code, _ = doRequest(t, http.MethodGet, base+"/api/status", nil, "wrong")
	if code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d", code)
	}
	code, _ = doRequest(t, http.MethodGet, base+"/api/status", nil, "sekret")
	if code != http.StatusOK {
		t.Fatalf("authorized status = %d", code)
	}
	code, _ = doRequest(t, http.MethodGet, base+"/api/health", nil, "")
	if code != http.StatusOK {
		t.Fatalf("health should stay open, got %d", code)
	}
}

func TestAPILogsEndpoint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stream := logging.NewStreamHub(16)
	d, _ := newTestDaemon(t, cfg, WithLogStream(stream))
	startDaemon(t, d)
	base := apiBase(t, d)

	stream.Publish(logging.LogEvent{Level: "INFO", Message: "first", Component: "orchestrator"})
	stream.Publish(logging.LogEvent{Level: "WARN", Message: "second", Component: "hub"})
	stream.Publish(logging.LogEvent{Level: "INFO", Message: "third", Component: "orchestrator"})

	code, payload := doRequest(t, http.MethodGet, base+"/api/logs?tail=1&limit=2", nil, "")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	events, _ := payload["events"].([]any)
	if len(events) != 2 {
		t.Fatalf("events = %v", payload["events"])
	}
	if next, _ := payload["next"].(float64); next != 3 {
		t.Fatalf("next = %v", payload["next"])
	}

	code, payload = doRequest(t, http.MethodGet, base+"/api/logs?tail=1&component=hub", nil, "")
	if code != http.StatusOK {
		t.Fatalf("filter status = %d", code)
	}
	events, _ = payload["events"].([]any)
	if len(events) != 1 {
		t.Fatalf("filtered events = %v", payload["events"])
	}
	evt, _ := events[0].(map[string]any)
	if evt["msg"] != "second" {
		t.Fatalf("filtered message = %v", evt["msg"])
	}
}

func TestAPILogsWithoutStream(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newTestDaemon(t, cfg)
	startDaemon(t, d)
	base := apiBase(t, d)

	code, payload := doRequest(t, http.MethodGet, base+"/api/logs", nil, "")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if next, _ := payload["next"].(float64); next != 0 {
		t.Fatalf("next = %v", payload["next"])
	}
}
