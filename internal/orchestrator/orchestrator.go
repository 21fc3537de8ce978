package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"grabit/internal/config"
	"grabit/internal/history"
	"grabit/internal/logging"
	"grabit/internal/media"
	"grabit/internal/notifications"
	"grabit/internal/task"
)

// Backend executes the blocking retrieval work on behalf of the
// orchestrator. *processor.Processor is the production implementation.
type Backend interface {
	Extract(ctx context.Context, url string) (*media.Metadata, error)
	ExtractPlaylist(ctx context.Context, url string) (*media.PlaylistMetadata, error)
	Download(ctx context.Context, taskID string, req media.DownloadRequest, onProgress media.ProgressFunc) (*media.SingleResult, error)
}

// Publisher receives task lifecycle events for fan-out to observers.
// *hub.Hub is the production implementation.
type Publisher interface {
	PublishProgress(ev media.ProgressEvent)
	PublishStatus(taskID, status string, data map[string]any)
	PublishError(taskID, errMsg, errType string)
	PublishMetadata(taskID string, metadata any)
}

// Recorder archives completed downloads. *history.Store is the production
// implementation.
type Recorder interface {
	Record(ctx context.Context, entry *history.Entry) error
}

// Orchestrator tracks retrieval tasks through their lifecycle, spawning one
// execution goroutine per submission and publishing events as tasks advance.
// Cancellation is cooperative: pending work observes the task context, while
// calls already dispatched to the backend run to completion and have their
// results discarded.
type Orchestrator struct {
	cfg      *config.Config
	logger   *slog.Logger
	backend  Backend
	events   Publisher
	registry *task.Registry
	history  Recorder
	notifier notifications.Service

	mu      sync.Mutex
	running bool
	baseCtx context.Context
	cancel  context.CancelFunc
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures optional Orchestrator collaborators.
type Option func(*Orchestrator)

// WithHistory wires a download archive; completed items are recorded there.
func WithHistory(rec Recorder) Option {
	return func(o *Orchestrator) {
		o.history = rec
	}
}

// WithNotifier overrides the notification service (used in tests).
func WithNotifier(svc notifications.Service) Option {
	return func(o *Orchestrator) {
		o.notifier = svc
	}
}

// New constructs an orchestrator. The backend and publisher are required;
// history and notifications default to disabled and config-driven ntfy
// respectively.
func New(cfg *config.Config, backend Backend, events Publisher, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	o := &Orchestrator{
		cfg:      cfg,
		logger:   logger,
		backend:  backend,
		events:   events,
		registry: task.NewRegistry(),
		notifier: notifications.NewService(cfg),
		cancels:  make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start begins accepting submissions and launches the cleanup loop.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return errors.New("orchestrator already running")
	}
	if o.backend == nil || o.events == nil {
		return errors.New("orchestrator requires a backend and a publisher")
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.baseCtx = runCtx
	o.cancel = cancel
	o.running = true

	o.wg.Add(1)
	go o.cleanupLoop(runCtx)
	return nil
}

// Stop terminates background work and waits for execution goroutines. Work
// already dispatched to the backend still runs to completion first.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	cancel := o.cancel
	o.running = false
	o.cancel = nil
	o.mu.Unlock()

	cancel()
	o.wg.Wait()
}

// SubmitSingle starts a single video retrieval and returns its task id.
func (o *Orchestrator) SubmitSingle(req media.DownloadRequest) (string, error) {
	t := task.New(task.KindSingle, req.URL)
	ctx, err := o.admit(t)
	if err != nil {
		return "", err
	}

	o.logger.Info("single download submitted",
		logging.String(logging.FieldTaskID, t.ID),
		logging.String(logging.FieldURL, req.URL),
		logging.Int("quality", req.Quality))
	o.events.PublishStatus(t.ID, "started", map[string]any{
		"url":     req.URL,
		"quality": req.Quality,
		"type":    "single_video",
	})

	o.wg.Add(1)
	go o.runSingle(ctx, t.ID, req)
	return t.ID, nil
}

// SubmitPlaylist starts a playlist retrieval and returns its task id.
func (o *Orchestrator) SubmitPlaylist(req media.PlaylistRequest) (string, error) {
	t := task.New(task.KindPlaylist, req.URL)
	ctx, err := o.admit(t)
	if err != nil {
		return "", err
	}

	o.logger.Info("playlist download submitted",
		logging.String(logging.FieldTaskID, t.ID),
		logging.String(logging.FieldURL, req.URL))
	o.events.PublishStatus(t.ID, "started", map[string]any{
		"url":     req.URL,
		"quality": req.Quality,
		"type":    "playlist",
	})

	o.wg.Add(1)
	go o.runPlaylist(ctx, t.ID, req)
	return t.ID, nil
}

// SubmitBatch starts retrieval of an explicit URL list and returns its task id.
func (o *Orchestrator) SubmitBatch(req media.BatchRequest) (string, error) {
	t := task.New(task.KindBatch, "")
	ctx, err := o.admit(t)
	if err != nil {
		return "", err
	}

	o.logger.Info("batch download submitted",
		logging.String(logging.FieldTaskID, t.ID),
		logging.Int("urls", len(req.URLs)))
	o.events.PublishStatus(t.ID, "started", map[string]any{
		"urls":    req.URLs,
		"quality": req.Quality,
		"type":    "batch",
	})

	o.wg.Add(1)
	go o.runBatch(ctx, t.ID, req)
	return t.ID, nil
}

// admit registers a pending task and derives its cancellable context.
func (o *Orchestrator) admit(t *task.Task) (context.Context, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running {
		return nil, errors.New("orchestrator not started")
	}
	ctx, cancel := context.WithCancel(o.baseCtx)
	o.registry.Add(t)
	o.cancels[t.ID] = cancel
	return ctx, nil
}

// Cancel requests cooperative cancellation of a task. It reports true only
// when a cancellation was actually requested: the task must be known and not
// yet terminal. Backend calls already in flight are not interrupted; their
// results are discarded.
func (o *Orchestrator) Cancel(id string) bool {
	o.mu.Lock()
	cancel, ok := o.cancels[id]
	o.mu.Unlock()
	if !ok {
		return false
	}
	if _, err := o.registry.Cancel(id); err != nil {
		return false
	}
	cancel()

	o.events.PublishStatus(id, "cancelled", map[string]any{
		"message": "Task cancelled by user",
	})
	o.logger.Info("task cancelled", logging.String(logging.FieldTaskID, id))
	return true
}

// Status returns a snapshot of the task with the given id. It never blocks
// on task work.
func (o *Orchestrator) Status(id string) (*task.Task, bool) {
	return o.registry.Get(id)
}

// Tasks returns snapshots of all tracked tasks in submission order.
func (o *Orchestrator) Tasks() []*task.Task {
	return o.registry.List()
}

// Active returns the number of tasks not yet in a terminal status.
func (o *Orchestrator) Active() int {
	return o.registry.ActiveCount()
}

// Total returns the cumulative number of tasks ever submitted.
func (o *Orchestrator) Total() int64 {
	return o.registry.TotalSubmitted()
}

// cleanupLoop periodically evicts terminal tasks past the retention window
// and, above the registry capacity, oldest-terminal-first. Active tasks are
// never evicted.
func (o *Orchestrator) cleanupLoop(ctx context.Context) {
	defer o.wg.Done()

	interval := time.Duration(o.cfg.Tasks.CleanupInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ttl := time.Duration(o.cfg.Tasks.RetentionMinutes) * time.Minute
	if ttl <= 0 {
		ttl = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted := o.registry.Cleanup(ttl, o.cfg.Tasks.Capacity)
			if len(evicted) > 0 {
				o.logger.Debug("evicted finished tasks",
					logging.Int("count", len(evicted)))
			}
		}
	}
}

// clearCancel releases a task's cancellation handle once its goroutine ends.
func (o *Orchestrator) clearCancel(id string) {
	o.mu.Lock()
	cancel := o.cancels[id]
	delete(o.cancels, id)
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
