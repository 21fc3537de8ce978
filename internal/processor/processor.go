package processor

import (
	"context"
	"path/filepath"

	"log/slog"

	"grabit/internal/config"
	"grabit/internal/fileutil"
	"grabit/internal/language"
	"grabit/internal/logging"
	"grabit/internal/media"
	"grabit/internal/routing"
	"grabit/internal/services"
	"grabit/internal/services/ffmpeg"
	"grabit/internal/services/ytdlp"
)

// Fetcher is the retrieval surface the processor needs from yt-dlp.
type Fetcher interface {
	Probe(ctx context.Context, url string) (*ytdlp.Probe, error)
	Download(ctx context.Context, spec ytdlp.DownloadSpec, onProgress media.ProgressFunc) (*ytdlp.DownloadOutput, error)
	Subtitles(ctx context.Context, url string, langs []string, autoGenerated bool, format, outputTemplate, searchDir string) (map[string]string, error)
	Thumbnail(ctx context.Context, url, outputTemplate, searchDir string) (string, error)
}

// Renderer is the muxing surface the processor needs from ffmpeg.
type Renderer interface {
	Render(ctx context.Context, videoPath, audioPath, outputPath string) error
	Available(ctx context.Context) bool
}

// Processor picks the retrieval variant for each operation and shapes
// external tool output into download results.
type Processor struct {
	cfg      *config.Config
	policy   routing.Policy
	fetcher  Fetcher
	renderer Renderer
	logger   *slog.Logger
}

// Option adjusts processor construction.
type Option func(*Processor)

// WithFetcher replaces the yt-dlp backed fetcher.
func WithFetcher(f Fetcher) Option {
	return func(p *Processor) { p.fetcher = f }
}

// WithRenderer replaces the ffmpeg backed renderer.
func WithRenderer(r Renderer) Option {
	return func(p *Processor) { p.renderer = r }
}

// New builds a processor wired to the configured external tools.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Processor {
	p := &Processor{
		cfg:    cfg,
		policy: routing.Policy{DirectCeiling: cfg.Downloads.DirectQualityCeiling},
		logger: logging.NewComponentLogger(logger, "processor"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.fetcher == nil {
		p.fetcher = ytdlp.New(cfg.Tools.YtDlp, logger)
	}
	if p.renderer == nil {
		p.renderer = ffmpeg.New(cfg.Tools.FFmpeg, cfg.Tools.FFprobe, logger)
	}
	return p
}

// Extract resolves metadata for a single video URL.
func (p *Processor) Extract(ctx context.Context, url string) (*media.Metadata, error) {
	probe, err := p.fetcher.Probe(ctx, url)
	if err != nil {
		return nil, err
	}
	if probe.Kind != ytdlp.ProbeVideo || probe.Video == nil {
		return nil, services.Wrap(services.ErrExtraction, "processor", "extract", "url resolves to a playlist", nil)
	}
	return probe.Video, nil
}

// ExtractPlaylist resolves metadata and the entry list for a playlist URL.
func (p *Processor) ExtractPlaylist(ctx context.Context, url string) (*media.PlaylistMetadata, error) {
	probe, err := p.fetcher.Probe(ctx, url)
	if err != nil {
		return nil, err
	}
	if probe.Kind != ytdlp.ProbePlaylist || probe.Playlist == nil {
		return nil, services.Wrap(services.ErrExtraction, "processor", "extract_playlist", "url resolves to a single video", nil)
	}
	return probe.Playlist, nil
}

// Subtitles fetches subtitle tracks into the download directory and returns
// a map of language to written file. Languages default to the configured
// list when the request names none.
func (p *Processor) Subtitles(ctx context.Context, url string, langs []string, format string, autoGenerated bool) (map[string]string, error) {
	if len(langs) == 0 {
		langs = p.cfg.Downloads.SubtitleLanguages
	}
	langs = language.NormalizeList(langs)
	if format == "" {
		format = "srt"
	}
	dir := p.cfg.Paths.DownloadDir
	template := filepath.Join(dir, p.prefixed("%(title)s")+".%(ext)s")
	return p.fetcher.Subtitles(ctx, url, langs, autoGenerated, format, template, dir)
}

// Thumbnail fetches the video thumbnail into the download directory and
// returns the image path, or an empty string when none was written.
func (p *Processor) Thumbnail(ctx context.Context, url string) (string, error) {
	dir := p.cfg.Paths.DownloadDir
	template := filepath.Join(dir, p.prefixed("%(title)s")+".%(ext)s")
	return p.fetcher.Thumbnail(ctx, url, template, dir)
}

// RendererAvailable reports whether the ffmpeg backend responds.
func (p *Processor) RendererAvailable(ctx context.Context) bool {
	return p.renderer.Available(ctx)
}

// prefixed prepends the configured filename prefix to a template base.
func (p *Processor) prefixed(base string) string {
	if !p.cfg.Downloads.PrefixFilenames || p.cfg.Downloads.FilenamePrefix == "" {
		return base
	}
	return p.cfg.Downloads.FilenamePrefix + "_" + base
}

// downloadFilename builds the final name for a rendered file.
func (p *Processor) downloadFilename(title, ext string) string {
	base := fileutil.SanitizeFileName(title)
	if base == "" {
		base = "video"
	}
	return p.prefixed(base) + "." + ext
}
