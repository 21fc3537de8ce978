package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"grabit/internal/api"
	"grabit/internal/config"
	"grabit/internal/deps"
	"grabit/internal/history"
	"grabit/internal/hub"
	"grabit/internal/logging"
	"grabit/internal/media"
	"grabit/internal/notifications"
	"grabit/internal/orchestrator"
	"grabit/internal/preflight"
	"grabit/internal/processor"
	"grabit/internal/task"
)

// ErrHistoryUnavailable is returned by history helpers when the archive is
// disabled in configuration.
var ErrHistoryUnavailable = errors.New("history archive unavailable")

// MediaService covers the synchronous operations the HTTP surface exposes
// without creating a task, beyond what the orchestrator backend needs.
// *processor.Processor is the production implementation.
type MediaService interface {
	orchestrator.Backend
	Subtitles(ctx context.Context, url string, langs []string, format string, autoGenerated bool) (map[string]string, error)
	Thumbnail(ctx context.Context, url string) (string, error)
	RendererAvailable(ctx context.Context) bool
}

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	svc      MediaService
	orch     *orchestrator.Orchestrator
	hub      *hub.Hub
	history  *history.Store
	notifier notifications.Service
	stream   *logging.StreamHub
	api      *apiServer

	logPath  string
	lockPath string
	lock     *flock.Flock

	startedAt time.Time
	running   atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
	hubDone   chan struct{}

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running         bool
	PID             int
	Version         string
	StartedAt       time.Time
	UptimeSeconds   float64
	BindAddress     string
	ActiveDownloads int
	TotalDownloads  int64
	MaxConcurrent   int
	Hub             hub.Stats
	DiskFreeMB      uint64
	MemoryUsageMB   float64
	HistoryDBPath   string
	HistoryCount    int64
	LockFilePath    string
	LogFilePath     string
	FFmpegAvailable bool
	Dependencies    []deps.Status
}

// Option adjusts daemon construction, mainly for tests.
type Option func(*Daemon)

// WithMediaService replaces the default yt-dlp backed processor.
func WithMediaService(svc MediaService) Option {
	return func(d *Daemon) {
		d.svc = svc
	}
}

// WithNotifier replaces the config-driven notification service.
func WithNotifier(svc notifications.Service) Option {
	return func(d *Daemon) {
		d.notifier = svc
	}
}

// WithLogStream attaches the in-memory log buffer served by /api/logs.
func WithLogStream(stream *logging.StreamHub) Option {
	return func(d *Daemon) {
		d.stream = stream
	}
}

// New constructs a daemon with initialized dependencies. The history archive
// is opened here when enabled; everything else starts in Start.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}

	d := &Daemon{
		cfg:        cfg,
		logger:     logger,
		logPath:    filepath.Join(cfg.Paths.LogDir, "grabit.log"),
		lockPath:   cfg.LockPath(),
		shutdownCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.svc == nil {
		d.svc = processor.New(cfg, logger)
	}
	if d.notifier == nil {
		d.notifier = notifications.NewService(cfg)
	}
	d.hub = hub.New(cfg, logger)

	orchOpts := []orchestrator.Option{orchestrator.WithNotifier(d.notifier)}
	if cfg.History.Enabled {
		store, err := history.Open(cfg)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		d.history = store
		orchOpts = append(orchOpts, orchestrator.WithHistory(store))
	}
	d.orch = orchestrator.New(cfg, d.svc, d.hub, logger, orchOpts...)

	d.lock = flock.New(d.lockPath)

	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = srv
	return d, nil
}

// Start acquires the daemon lock, runs the preflight, and launches the hub,
// the orchestrator, and the HTTP server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another grabit daemon instance is already running")
	}

	if err := d.runPreflight(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.hubDone = make(chan struct{})
	go func() {
		d.hub.Run(d.ctx)
		close(d.hubDone)
	}()

	if err := d.orch.Start(d.ctx); err != nil {
		d.teardown()
		return fmt.Errorf("start orchestrator: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		d.orch.Stop()
		d.teardown()
		return err
	}

	d.startedAt = time.Now().UTC()
	d.running.Store(true)
	d.logger.Info("grabit daemon started",
		logging.String("lock", d.lockPath),
		logging.String("bind", d.cfg.Server.Bind))
	return nil
}

// Stop shuts down background processing and releases the daemon lock. Tasks
// already dispatched to the backend finish before the orchestrator returns.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.api.stop()
	d.orch.Stop()
	d.teardown()
	d.running.Store(false)
	d.logger.Info("grabit daemon stopped",
		logging.Duration("uptime", time.Since(d.startedAt)))
}

func (d *Daemon) teardown() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.hubDone != nil {
		<-d.hubDone
		d.hubDone = nil
	}
	d.ctx = nil
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.history != nil {
		return d.history.Close()
	}
	return nil
}

// RequestShutdown asks the process running the daemon to exit. It is safe to
// call from RPC handlers while the daemon is serving.
func (d *Daemon) RequestShutdown() {
	d.shutdownOnce.Do(func() {
		close(d.shutdownCh)
	})
}

// ShutdownRequested is closed once RequestShutdown has been called.
func (d *Daemon) ShutdownRequested() <-chan struct{} {
	return d.shutdownCh
}

func (d *Daemon) runPreflight(ctx context.Context) error {
	results := preflight.RunAll(ctx, d.cfg)
	var failed []string
	for _, res := range results {
		if res.Passed {
			continue
		}
		failed = append(failed, fmt.Sprintf("%s: %s", res.Name, res.Detail))
		d.logger.Error("preflight check failed",
			logging.String("check", res.Name),
			logging.String("detail", res.Detail))
	}
	if len(failed) > 0 {
		return fmt.Errorf("preflight failed: %s", strings.Join(failed, "; "))
	}
	d.logger.Info("preflight checks passed", logging.Int("checks", len(results)))
	return nil
}

// SubmitSingle validates and starts a single video retrieval.
func (d *Daemon) SubmitSingle(req media.DownloadRequest) (string, error) {
	req.ApplyDefaults(d.cfg.Downloads.DefaultQuality, d.cfg.Downloads.DefaultFormat)
	if err := req.Validate(); err != nil {
		return "", err
	}
	return d.orch.SubmitSingle(req)
}

// SubmitPlaylist validates and starts a playlist retrieval.
func (d *Daemon) SubmitPlaylist(req media.PlaylistRequest) (string, error) {
	req.ApplyDefaults(d.cfg.Downloads.DefaultQuality, d.cfg.Downloads.DefaultFormat)
	if err := req.Validate(); err != nil {
		return "", err
	}
	return d.orch.SubmitPlaylist(req)
}

// SubmitBatch validates and starts retrieval of an explicit URL list.
func (d *Daemon) SubmitBatch(req media.BatchRequest) (string, error) {
	req.ApplyDefaults(d.cfg.Downloads.DefaultQuality, d.cfg.Downloads.DefaultFormat)
	if err := req.Validate(); err != nil {
		return "", err
	}
	return d.orch.SubmitBatch(req)
}

// Cancel requests cooperative cancellation of a task.
func (d *Daemon) Cancel(id string) bool {
	return d.orch.Cancel(id)
}

// Task returns a snapshot of the task with the given id.
func (d *Daemon) Task(id string) (*task.Task, bool) {
	return d.orch.Status(id)
}

// Tasks returns snapshots of all tracked tasks.
func (d *Daemon) Tasks() []*task.Task {
	return d.orch.Tasks()
}

// HistoryList returns the most recent archived downloads.
func (d *Daemon) HistoryList(ctx context.Context, limit int) ([]*history.Entry, error) {
	if d.history == nil {
		return nil, ErrHistoryUnavailable
	}
	return d.history.List(ctx, limit)
}

// HistoryClear removes all archived downloads.
func (d *Daemon) HistoryClear(ctx context.Context) (int64, error) {
	if d.history == nil {
		return 0, ErrHistoryUnavailable
	}
	return d.history.Clear(ctx)
}

// HistoryRemove deletes one archived download by row id.
func (d *Daemon) HistoryRemove(ctx context.Context, id int64) (bool, error) {
	if d.history == nil {
		return false, ErrHistoryUnavailable
	}
	return d.history.Remove(ctx, id)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// LogStream returns the in-memory log buffer, which may be nil.
func (d *Daemon) LogStream() *logging.StreamHub {
	return d.stream
}

// Hub returns the broadcast hub the daemon publishes task events through.
func (d *Daemon) Hub() *hub.Hub {
	return d.hub
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	st := Status{
		Running:         d.running.Load(),
		PID:             os.Getpid(),
		Version:         api.Version,
		StartedAt:       d.startedAt,
		BindAddress:     d.cfg.Server.Bind,
		ActiveDownloads: d.orch.Active(),
		TotalDownloads:  d.orch.Total(),
		MaxConcurrent:   d.cfg.Downloads.MaxConcurrent,
		Hub:             d.hub.Stats(),
		MemoryUsageMB:   preflight.MemoryUsageMB(),
		LockFilePath:    d.lockPath,
		LogFilePath:     d.logPath,
		FFmpegAvailable: d.svc.RendererAvailable(ctx),
		Dependencies:    preflight.CheckSystemDeps(d.cfg),
	}
	if !d.startedAt.IsZero() {
		st.UptimeSeconds = time.Since(d.startedAt).Seconds()
	}
	if addr := d.api.address(); addr != "" {
		st.BindAddress = addr
	}
	if free, _, err := preflight.DiskSpace(d.cfg.Paths.DownloadDir); err == nil {
		st.DiskFreeMB = free
	}
	if d.history != nil {
		st.HistoryDBPath = d.history.Path()
		if count, err := d.history.Count(ctx); err == nil {
			st.HistoryCount = count
		}
	}
	return st
}
