package processor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"grabit/internal/fileutil"
	"grabit/internal/language"
	"grabit/internal/logging"
	"grabit/internal/media"
	"grabit/internal/routing"
	"grabit/internal/services"
	"grabit/internal/services/ytdlp"
)

// Download retrieves a single video, choosing between the direct path and
// the split download+render path based on the requested quality. The
// returned result is fully populated on success; failures are reported as
// errors and shaped into results by the caller.
func (p *Processor) Download(ctx context.Context, taskID string, req media.DownloadRequest, onProgress media.ProgressFunc) (*media.SingleResult, error) {
	variant := p.policy.Select(req.Quality, routing.OpDownload)

	logging.WithContext(ctx, p.logger).Info("download dispatch",
		logging.String(logging.FieldURL, req.URL),
		logging.Int("quality", req.Quality),
		logging.String("variant", string(variant)))

	if variant.RequiresRender() {
		return p.downloadSplit(ctx, taskID, req, onProgress)
	}
	return p.downloadDirect(ctx, taskID, req, onProgress)
}

// downloadDirect fetches the best single stream at or below the requested
// quality straight into the download directory.
func (p *Processor) downloadDirect(ctx context.Context, taskID string, req media.DownloadRequest, onProgress media.ProgressFunc) (*media.SingleResult, error) {
	started := time.Now()

	base := p.prefixed("%(title)s")
	if req.CustomFilename != "" {
		base = p.prefixed(fileutil.SanitizeFileName(req.CustomFilename))
	}

	langs := req.SubtitleLanguages
	if len(langs) == 0 {
		langs = p.cfg.Downloads.SubtitleLanguages
	}
	langs = language.NormalizeList(langs)

	spec := ytdlp.DownloadSpec{
		URL:            req.URL,
		Format:         routing.DirectFormat(req.Quality),
		OutputTemplate: filepath.Join(p.cfg.Paths.DownloadDir, base+".%(ext)s"),
		Subtitles:      req.IncludeSubtitles,
		AutoSubs:       req.IncludeSubtitles,
		SubtitleLangs:  langs,
		Thumbnail:      req.DownloadThumbnail,
		NoPlaylist:     true,
	}

	out, err := p.fetcher.Download(ctx, spec, stageProgress(taskID, media.StageDownloading, onProgress))
	if err != nil {
		return nil, err
	}
	if out.Filename == "" {
		return nil, services.Wrap(services.ErrDownload, "processor", "locate", "downloaded file not reported", nil)
	}

	res := p.newResult(taskID, started, out.Title, req.URL)
	res.VideoFile = out.Filename
	res.Filesize = fileutil.FileSize(out.Filename)
	finishResult(res)

	if req.IncludeSubtitles {
		res.SubtitleFiles = ytdlp.FindSubtitleFiles(p.cfg.Paths.DownloadDir, langs)
	}
	if req.DownloadThumbnail {
		res.ThumbnailFile = ytdlp.FindThumbnailFile(p.cfg.Paths.DownloadDir, out.Title)
	}
	return res, nil
}

// downloadSplit fetches video and audio streams concurrently into the temp
// directory, muxes them with ffmpeg, and places the rendered file in the
// download directory. Temp components are removed regardless of outcome.
func (p *Processor) downloadSplit(ctx context.Context, taskID string, req media.DownloadRequest, onProgress media.ProgressFunc) (*media.SingleResult, error) {
	started := time.Now()
	videoFormat, audioFormat := routing.SplitFormats(req.Quality)
	tempDir := p.cfg.Paths.TempDir

	videoSpec := ytdlp.DownloadSpec{
		URL:            req.URL,
		Format:         videoFormat,
		OutputTemplate: filepath.Join(tempDir, "video_"+taskID+".%(ext)s"),
		NoPlaylist:     true,
	}
	audioSpec := ytdlp.DownloadSpec{
		URL:            req.URL,
		Format:         audioFormat,
		OutputTemplate: filepath.Join(tempDir, "audio_"+taskID+".%(ext)s"),
		NoPlaylist:     true,
	}

	var wg sync.WaitGroup
	var videoOut, audioOut *ytdlp.DownloadOutput
	var videoErr, audioErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		videoOut, videoErr = p.fetcher.Download(ctx, videoSpec, stageProgress(taskID, media.StageDownloading, onProgress))
	}()
	go func() {
		defer wg.Done()
		audioOut, audioErr = p.fetcher.Download(ctx, audioSpec, nil)
	}()
	wg.Wait()

	if videoErr != nil {
		return nil, videoErr
	}
	if audioErr != nil {
		return nil, audioErr
	}

	videoFile := p.resolveTempFile(videoOut, "video_"+taskID)
	audioFile := p.resolveTempFile(audioOut, "audio_"+taskID)
	defer p.cleanupTemp(videoFile, audioFile)

	if videoFile == "" || audioFile == "" {
		return nil, services.Wrap(services.ErrDownload, "processor", "split", "missing video or audio component", nil)
	}

	title := videoOut.Title
	if title == "" {
		title = "video"
	}
	outputName := p.downloadFilename(title, "mp4")
	renderPath := filepath.Join(tempDir, "render_"+taskID+".mp4")

	emit(onProgress, media.ProgressEvent{
		TaskID:    taskID,
		Stage:     media.StageRendering,
		Percent:   -1,
		Message:   "Rendering with FFmpeg",
		Timestamp: time.Now(),
	})

	if err := p.renderer.Render(ctx, videoFile, audioFile, renderPath); err != nil {
		return nil, err
	}

	finalPath := filepath.Join(p.cfg.Paths.DownloadDir, outputName)
	if err := fileutil.MoveFile(renderPath, finalPath); err != nil {
		return nil, services.Wrap(services.ErrRender, "processor", "place", outputName, err)
	}

	res := p.newResult(taskID, started, title, req.URL)
	res.VideoFile = finalPath
	res.Filesize = fileutil.FileSize(finalPath)
	finishResult(res)
	return res, nil
}

// resolveTempFile prefers the filename reported by the tool and falls back
// to scanning the temp directory for the task's component prefix.
func (p *Processor) resolveTempFile(out *ytdlp.DownloadOutput, prefix string) string {
	if out != nil && out.Filename != "" {
		if _, err := os.Stat(out.Filename); err == nil {
			return out.Filename
		}
	}
	entries, err := os.ReadDir(p.cfg.Paths.TempDir)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			return filepath.Join(p.cfg.Paths.TempDir, entry.Name())
		}
	}
	return ""
}

func (p *Processor) cleanupTemp(paths ...string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := fileutil.RemoveIfExists(path); err != nil {
			p.logger.Warn("temp cleanup failed",
				logging.String("path", path),
				logging.Error(err))
		}
	}
}

// newResult seeds a completed result shell with the metadata the download
// itself reported. Callers that extracted richer metadata beforehand
// overwrite the Metadata field.
func (p *Processor) newResult(taskID string, started time.Time, title, url string) *media.SingleResult {
	res := &media.SingleResult{
		TaskID:    taskID,
		Status:    "completed",
		StartedAt: started,
	}
	if title != "" {
		res.Metadata = &media.Metadata{
			Title:      title,
			WebpageURL: url,
			Extractor:  "yt-dlp",
		}
	}
	return res
}

// finishResult stamps completion timing and derives the average speed.
func finishResult(res *media.SingleResult) {
	res.CompletedAt = time.Now().UTC()
	res.DownloadTime = res.CompletedAt.Sub(res.StartedAt).Seconds()
	if res.DownloadTime > 0 && res.Filesize > 0 {
		res.AverageSpeed = float64(res.Filesize) / res.DownloadTime
	}
}

// stageProgress stamps task identity and pipeline stage onto events before
// forwarding them.
func stageProgress(taskID, stage string, fn media.ProgressFunc) media.ProgressFunc {
	if fn == nil {
		return nil
	}
	return func(ev media.ProgressEvent) {
		ev.TaskID = taskID
		ev.Stage = stage
		if ev.Timestamp.IsZero() {
			ev.Timestamp = time.Now()
		}
		fn(ev)
	}
}

func emit(fn media.ProgressFunc, ev media.ProgressEvent) {
	if fn != nil {
		fn(ev)
	}
}
