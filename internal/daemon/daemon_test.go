package daemon

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"grabit/internal/config"
	"grabit/internal/logging"
	"grabit/internal/media"
	"grabit/internal/testsupport"
)

type fakeMedia struct {
	mu         sync.Mutex
	meta       *media.Metadata
	playlist   *media.PlaylistMetadata
	extractErr error
	downloadFn func(ctx context.Context, taskID string, req media.DownloadRequest, onProgress media.ProgressFunc) (*media.SingleResult, error)
	subtitles  map[string]string
	thumbnail  string
	renderer   bool
}

func (f *fakeMedia) Extract(ctx context.Context, url string) (*media.Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	if f.meta != nil {
		return f.meta, nil
	}
	return &media.Metadata{ID: "vid1", Title: "Test Video"}, nil
}

func (f *fakeMedia) ExtractPlaylist(ctx context.Context, url string) (*media.PlaylistMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	if f.playlist != nil {
		return f.playlist, nil
	}
	return &media.PlaylistMetadata{ID: "pl1", Title: "Test Playlist"}, nil
}

func (f *fakeMedia) Download(ctx context.Context, taskID string, req media.DownloadRequest, onProgress media.ProgressFunc) (*media.SingleResult, error) {
	f.mu.Lock()
	fn := f.downloadFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, taskID, req, onProgress)
	}
	now := time.Now().UTC()
	return &media.SingleResult{
		TaskID:       taskID,
		Status:       "completed",
		VideoFile:    "/downloads/video.mp4",
		Filesize:     2048,
		DownloadTime: 0.5,
		StartedAt:    now,
		CompletedAt:  now,
	}, nil
}

func (f *fakeMedia) Subtitles(ctx context.Context, url string, langs []string, format string, autoGenerated bool) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subtitles != nil {
		return f.subtitles, nil
	}
	return map[string]string{"en": "/downloads/video.en.srt"}, nil
}

func (f *fakeMedia) Thumbnail(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.thumbnail != "" {
		return f.thumbnail, nil
	}
	return "/downloads/video.jpg", nil
}

func (f *fakeMedia) RendererAvailable(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.renderer
}

func newTestDaemon(t *testing.T, cfg *config.Config, opts ...Option) (*Daemon, *fakeMedia) {
	t.Helper()
	fake := &fakeMedia{}
	opts = append([]Option{WithMediaService(fake)}, opts...)
	d, err := New(cfg, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d, fake
}

func startDaemon(t *testing.T, d *Daemon) {
	t.Helper()
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d.Stop)
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newTestDaemon(t, cfg)

	startDaemon(t, d)
	if !d.Status(context.Background()).Running {
		t.Fatal("daemon should report running after Start")
	}
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail while running")
	}

	d.Stop()
	if d.Status(context.Background()).Running {
		t.Fatal("daemon should report stopped after Stop")
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, _ := newTestDaemon(t, cfg)
	startDaemon(t, first)

	second, _ := newTestDaemon(t, cfg)
	err := second.Start(context.Background())
	if err == nil {
		second.Stop()
		t.Fatal("second instance should fail to acquire lock")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDaemonStatusFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, fake := newTestDaemon(t, cfg)
	fake.renderer = true
	startDaemon(t, d)

	st := d.Status(context.Background())
	if st.PID <= 0 {
		t.Fatalf("PID = %d", st.PID)
	}
	if st.Version != "1.0.0" {
		t.Fatalf("Version = %q", st.Version)
	}
	if !st.FFmpegAvailable {
		t.Fatal("expected renderer availability to surface")
	}
	if len(st.Dependencies) == 0 {
		t.Fatal("expected dependency statuses")
	}
	if st.MaxConcurrent != cfg.Downloads.MaxConcurrent {
		t.Fatalf("MaxConcurrent = %d", st.MaxConcurrent)
	}
	if !strings.Contains(st.BindAddress, "127.0.0.1") {
		t.Fatalf("BindAddress = %q", st.BindAddress)
	}
	if strings.HasSuffix(st.BindAddress, ":0") {
		t.Fatalf("BindAddress should carry the bound port, got %q", st.BindAddress)
	}
	if st.HistoryDBPath == "" {
		t.Fatal("expected history db path with history enabled")
	}
	if st.LockFilePath != cfg.LockPath() {
		t.Fatalf("LockFilePath = %q", st.LockFilePath)
	}
}

func TestDaemonHistoryDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.History.Enabled = false
	d, _ := newTestDaemon(t, cfg)

	if _, err := d.HistoryList(context.Background(), 10); err != ErrHistoryUnavailable {
		t.Fatalf("HistoryList err = %v", err)
	}
	if _, err := d.HistoryClear(context.Background()); err != ErrHistoryUnavailable {
		t.Fatalf("HistoryClear err = %v", err)
	}
}

func TestDaemonTestNotificationUnconfigured(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newTestDaemon(t, cfg)

	sent, detail, err := d.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("TestNotification err = %v", err)
	}
	if sent {
		t.Fatal("notification should not send without a topic")
	}
	if !strings.Contains(detail, "not configured") {
		t.Fatalf("detail = %q", detail)
	}
}

func TestDaemonShutdownRequest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newTestDaemon(t, cfg)

	select {
	case <-d.ShutdownRequested():
		t.Fatal("shutdown channel should start open")
	default:
	}

	d.RequestShutdown()
	d.RequestShutdown()

	select {
	case <-d.ShutdownRequested():
	case <-time.After(time.Second):
		t.Fatal("shutdown channel should be closed after request")
	}
}
