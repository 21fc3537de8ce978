package orchestrator

import (
	"context"
	"fmt"
	"time"

	"grabit/internal/batch"
	"grabit/internal/history"
	"grabit/internal/logging"
	"grabit/internal/media"
	"grabit/internal/services"
	"grabit/internal/task"
)

// runSingle drives one video retrieval to a terminal status. The work
// context is detached from the task context so a dispatched backend call is
// never interrupted; between steps the task context is checked and the run
// stops early once cancelled.
func (o *Orchestrator) runSingle(ctx context.Context, id string, req media.DownloadRequest) {
	defer o.wg.Done()
	defer o.clearCancel(id)

	work := services.WithTaskID(context.WithoutCancel(ctx), id)
	started := time.Now().UTC()

	if !o.advance(ctx, id, task.StatusExtracting) {
		return
	}
	o.events.PublishStatus(id, "extracting", map[string]any{
		"message": "Extracting video metadata",
	})

	meta, err := o.backend.Extract(services.WithStage(work, media.StageExtracting), req.URL)
	if err != nil {
		o.failSingle(work, id, req.URL, started, err)
		return
	}
	o.events.PublishMetadata(id, meta)

	if !o.advance(ctx, id, task.StatusDownloading) {
		return
	}
	o.events.PublishStatus(id, "downloading", map[string]any{
		"message": "Starting download",
	})

	res, err := o.backend.Download(services.WithStage(work, media.StageDownloading), id, req, o.progressFunc(id, true))
	if err != nil {
		o.failSingle(work, id, req.URL, started, err)
		return
	}
	if ctx.Err() != nil {
		return
	}

	res.TaskID = id
	res.Metadata = meta
	if res.StartedAt.IsZero() {
		res.StartedAt = started
	}

	if _, err := o.registry.Complete(id, res); err != nil {
		return
	}
	o.events.PublishStatus(id, "completed", map[string]any{
		"message":       "Download completed successfully",
		"file_path":     res.VideoFile,
		"file_size":     res.Filesize,
		"download_time": res.DownloadTime,
	})
	o.logger.Info("single download completed",
		logging.String(logging.FieldTaskID, id),
		logging.String("file", res.VideoFile),
		logging.Int64("size_bytes", res.Filesize),
		logging.Float64("seconds", res.DownloadTime))

	o.recordEntry(work, task.KindSingle, req.URL, req, res)
	if err := o.notifier.NotifyDownloadCompleted(work, meta.Title, res.VideoFile, res.Filesize); err != nil {
		o.logger.Warn("completion notification failed", logging.Error(err))
	}
}

// runPlaylist extracts the playlist, applies the selection rules, fans the
// chosen entries out under the global concurrency cap, and aggregates the
// per-entry outcomes.
func (o *Orchestrator) runPlaylist(ctx context.Context, id string, req media.PlaylistRequest) {
	defer o.wg.Done()
	defer o.clearCancel(id)

	work := services.WithTaskID(context.WithoutCancel(ctx), id)
	started := time.Now().UTC()

	if !o.advance(ctx, id, task.StatusExtracting) {
		return
	}
	o.events.PublishStatus(id, "extracting", map[string]any{
		"message": "Extracting playlist metadata",
	})

	meta, err := o.backend.ExtractPlaylist(services.WithStage(work, media.StageExtracting), req.URL)
	if err != nil {
		o.failPlaylist(work, id, req.URL, started, err)
		return
	}
	o.events.PublishMetadata(id, meta)

	entries := meta.SelectEntries(&req)
	items := make([]media.DownloadRequest, len(entries))
	for i, entry := range entries {
		items[i] = req.SingleRequest(entry.URL)
	}

	if !o.advance(ctx, id, task.StatusDownloading) {
		return
	}
	o.events.PublishStatus(id, "downloading", map[string]any{
		"message":      fmt.Sprintf("Starting download of %d videos", len(items)),
		"total_videos": len(items),
	})

	results := o.runItems(ctx, id, items)
	if ctx.Err() != nil {
		return
	}

	res := &media.PlaylistResult{
		PlaylistID:  id,
		Metadata:    meta,
		TotalVideos: len(items),
		Results:     results,
		StartedAt:   started,
		CompletedAt: time.Now().UTC(),
	}
	res.TotalDownloadTime = res.CompletedAt.Sub(started).Seconds()
	res.Summarize()

	if _, err := o.registry.Complete(id, res); err != nil {
		return
	}
	o.events.PublishStatus(id, "completed", map[string]any{
		"message":    "Playlist download completed",
		"successful": res.SuccessfulDownloads,
		"failed":     res.FailedDownloads,
		"total_size": res.TotalFilesize,
	})
	o.logger.Info("playlist download completed",
		logging.String(logging.FieldTaskID, id),
		logging.Int("successful", res.SuccessfulDownloads),
		logging.Int("failed", res.FailedDownloads))

	for i, itemRes := range results {
		o.recordEntry(work, task.KindPlaylist, items[i].URL, items[i], itemRes)
	}
	if err := o.notifier.NotifyPlaylistCompleted(work, meta.Title, res.SuccessfulDownloads, res.FailedDownloads, res.TotalFilesize); err != nil {
		o.logger.Warn("completion notification failed", logging.Error(err))
	}
}

// runBatch fans an explicit URL list out under the request's concurrency
// override (or the global cap) and aggregates the per-URL outcomes. Batch
// tasks have no extraction step.
func (o *Orchestrator) runBatch(ctx context.Context, id string, req media.BatchRequest) {
	defer o.wg.Done()
	defer o.clearCancel(id)

	work := services.WithTaskID(context.WithoutCancel(ctx), id)
	started := time.Now().UTC()

	items := make([]media.DownloadRequest, len(req.URLs))
	for i, rawURL := range req.URLs {
		items[i] = req.SingleRequest(rawURL)
	}

	if !o.advance(ctx, id, task.StatusDownloading) {
		return
	}
	o.events.PublishStatus(id, "downloading", map[string]any{
		"message":      fmt.Sprintf("Starting batch download of %d videos", len(items)),
		"total_videos": len(items),
	})

	limit := req.MaxConcurrent
	if limit <= 0 {
		limit = o.cfg.Downloads.MaxConcurrent
	}
	results := o.runItemsWithLimit(ctx, id, items, limit)
	if ctx.Err() != nil {
		return
	}

	res := &media.BatchResult{
		BatchID:     id,
		TotalVideos: len(items),
		Results:     results,
		StartedAt:   started,
		CompletedAt: time.Now().UTC(),
	}
	res.TotalDownloadTime = res.CompletedAt.Sub(started).Seconds()
	res.Summarize()

	if _, err := o.registry.Complete(id, res); err != nil {
		return
	}
	o.events.PublishStatus(id, "completed", map[string]any{
		"message":    "Batch download completed",
		"successful": res.SuccessfulDownloads,
		"failed":     res.FailedDownloads,
		"total_size": res.TotalFilesize,
	})
	o.logger.Info("batch download completed",
		logging.String(logging.FieldTaskID, id),
		logging.Int("successful", res.SuccessfulDownloads),
		logging.Int("failed", res.FailedDownloads))

	for i, itemRes := range results {
		o.recordEntry(work, task.KindBatch, items[i].URL, items[i], itemRes)
	}
	if err := o.notifier.NotifyBatchCompleted(work, res.SuccessfulDownloads, res.FailedDownloads, res.TotalFilesize); err != nil {
		o.logger.Warn("completion notification failed", logging.Error(err))
	}
}

// runItems executes per-item downloads under the global concurrency cap.
func (o *Orchestrator) runItems(ctx context.Context, id string, items []media.DownloadRequest) []*media.SingleResult {
	return o.runItemsWithLimit(ctx, id, items, o.cfg.Downloads.MaxConcurrent)
}

// runItemsWithLimit fans items out through the batch executor. Item failures
// are isolated; after each item finishes an aggregate progress status is
// published under the parent task id, matching the per-item events which are
// also restamped with the parent id.
func (o *Orchestrator) runItemsWithLimit(ctx context.Context, id string, items []media.DownloadRequest, limit int) []*media.SingleResult {
	total := len(items)
	exec := batch.Executor{
		Limit: limit,
		OnProgress: func(completed, total int) {
			percent := float64(completed) / float64(total) * 100
			o.events.PublishStatus(id, "downloading", map[string]any{
				"message":  fmt.Sprintf("Downloaded %d/%d videos", completed, total),
				"progress": percent,
			})
			o.registry.SetProgress(id, media.ProgressEvent{
				TaskID:    id,
				Stage:     media.StageDownloading,
				Percent:   percent,
				Message:   fmt.Sprintf("Downloaded %d/%d videos", completed, total),
				Timestamp: time.Now().UTC(),
			})
		},
	}

	results := exec.Run(ctx, total, func(fctx context.Context, index int) (*media.SingleResult, error) {
		itemID := fmt.Sprintf("%s_video_%d", id, index)
		itemCtx := services.WithTaskID(context.WithoutCancel(fctx), itemID)
		itemCtx = services.WithStage(itemCtx, media.StageDownloading)
		res, err := o.backend.Download(itemCtx, itemID, items[index], o.progressFunc(id, false))
		if err != nil {
			return nil, err
		}
		res.TaskID = itemID
		return res, nil
	})

	for i, res := range results {
		if res != nil && res.TaskID == "" {
			res.TaskID = fmt.Sprintf("%s_video_%d", id, i)
		}
	}
	return results
}

// advance moves the task forward one lifecycle status. It reports false when
// the task context is cancelled or the registry refuses the transition,
// which means the run should stop silently: the cancel path has already
// stamped the task and published its event.
func (o *Orchestrator) advance(ctx context.Context, id string, status task.Status) bool {
	if ctx.Err() != nil {
		return false
	}
	if _, err := o.registry.SetStatus(id, status); err != nil {
		return false
	}
	return true
}

// progressFunc builds the emit handle handed to the backend. Events are
// restamped with the parent task id, recorded on the registry, and forwarded
// to the publisher. Single tasks additionally move to the rendering status
// when the split path reports its render stage.
func (o *Orchestrator) progressFunc(id string, trackStages bool) media.ProgressFunc {
	return func(ev media.ProgressEvent) {
		ev.TaskID = id
		if ev.Timestamp.IsZero() {
			ev.Timestamp = time.Now().UTC()
		}
		if trackStages && ev.Stage == media.StageRendering {
			_, _ = o.registry.SetStatus(id, task.StatusRendering)
		}
		o.registry.SetProgress(id, ev)
		o.events.PublishProgress(ev)
	}
}

// failSingle records a failure-shaped result and publishes the error event.
// When the task already reached a terminal status (cancelled), the failure
// is discarded silently.
func (o *Orchestrator) failSingle(ctx context.Context, id, url string, started time.Time, err error) {
	kind := services.Classify(err)
	res := &media.SingleResult{
		TaskID:      id,
		Status:      "failed",
		Error:       err.Error(),
		ErrorType:   kind,
		StartedAt:   started,
		CompletedAt: time.Now().UTC(),
	}
	if _, ferr := o.registry.Fail(id, kind, err.Error(), res); ferr != nil {
		return
	}
	o.events.PublishError(id, err.Error(), kind)
	o.logger.Error("single download failed",
		logging.String(logging.FieldTaskID, id),
		logging.String(logging.FieldKind, kind),
		logging.Error(err))
	if nerr := o.notifier.NotifyDownloadFailed(ctx, url, err); nerr != nil {
		o.logger.Warn("failure notification failed", logging.Error(nerr))
	}
}

// failPlaylist records an empty aggregate for a playlist whose extraction
// failed before any item started.
func (o *Orchestrator) failPlaylist(ctx context.Context, id, url string, started time.Time, err error) {
	kind := services.Classify(err)
	res := &media.PlaylistResult{
		PlaylistID:  id,
		Results:     []*media.SingleResult{},
		StartedAt:   started,
		CompletedAt: time.Now().UTC(),
	}
	if _, ferr := o.registry.Fail(id, kind, err.Error(), res); ferr != nil {
		return
	}
	o.events.PublishError(id, err.Error(), kind)
	o.logger.Error("playlist download failed",
		logging.String(logging.FieldTaskID, id),
		logging.String(logging.FieldKind, kind),
		logging.Error(err))
	if nerr := o.notifier.NotifyDownloadFailed(ctx, url, err); nerr != nil {
		o.logger.Warn("failure notification failed", logging.Error(nerr))
	}
}

// recordEntry archives one successfully completed item when the archive is
// enabled. Failed and cancelled items are never archived.
func (o *Orchestrator) recordEntry(ctx context.Context, kind task.Kind, url string, req media.DownloadRequest, res *media.SingleResult) {
	if o.history == nil || !o.cfg.History.Enabled || !res.Succeeded() {
		return
	}
	entry := &history.Entry{
		TaskID:          res.TaskID,
		Kind:            string(kind),
		URL:             url,
		Format:          req.Format,
		Quality:         req.Quality,
		FilePath:        res.VideoFile,
		FileSize:        res.Filesize,
		DurationSeconds: res.DownloadTime,
		CompletedAt:     res.CompletedAt,
	}
	if res.Metadata != nil {
		entry.Title = res.Metadata.Title
	}
	if err := o.history.Record(ctx, entry); err != nil {
		o.logger.Warn("history record failed",
			logging.String(logging.FieldTaskID, res.TaskID),
			logging.Error(err))
	}
}
