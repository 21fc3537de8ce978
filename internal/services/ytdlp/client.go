package ytdlp

import (
	"context"
	"strings"
	"time"

	"log/slog"

	goytdlp "github.com/lrstanley/go-ytdlp"

	"grabit/internal/logging"
	"grabit/internal/media"
	"grabit/internal/services"
)

// Client drives yt-dlp for metadata extraction and media downloads.
type Client struct {
	binary           string
	progressInterval time.Duration
	logger           *slog.Logger
}

// New constructs a yt-dlp client. An empty binary path uses whatever
// yt-dlp the environment resolves.
func New(binary string, logger *slog.Logger) *Client {
	return &Client{
		binary:           strings.TrimSpace(binary),
		progressInterval: 500 * time.Millisecond,
		logger:           logging.NewComponentLogger(logger, "ytdlp"),
	}
}

func (c *Client) command() *goytdlp.Command {
	cmd := goytdlp.New()
	if c.binary != "" && c.binary != "yt-dlp" {
		cmd = cmd.SetExecutable(c.binary)
	}
	return cmd
}

// Probe extracts metadata for a URL without downloading anything. The
// returned probe carries either a single video or a playlist.
func (c *Client) Probe(ctx context.Context, url string) (*Probe, error) {
	cmd := c.command().
		DumpSingleJSON().
		SkipDownload().
		NoWarnings()

	res, err := cmd.Run(ctx, url)
	if err != nil {
		return nil, services.Wrap(services.ErrExtraction, "ytdlp", "probe", url, err)
	}
	probe, err := parseProbe([]byte(res.Stdout))
	if err != nil {
		return nil, services.Wrap(services.ErrExtraction, "ytdlp", "probe", "unparseable info dump", err)
	}
	return probe, nil
}

// DownloadSpec describes one yt-dlp download invocation.
type DownloadSpec struct {
	URL            string
	Format         string
	OutputTemplate string
	Subtitles      bool
	SubtitleLangs  []string
	AutoSubs       bool
	Thumbnail      bool
	NoPlaylist     bool
}

// DownloadOutput reports what a download produced.
type DownloadOutput struct {
	Filename string
	Title    string
}

// Download retrieves media as described by spec, forwarding progress
// observations while the transfer runs.
func (c *Client) Download(ctx context.Context, spec DownloadSpec, onProgress media.ProgressFunc) (*DownloadOutput, error) {
	cmd := c.command().
		NoWarnings().
		ForceOverwrites().
		RestrictFilenames()

	if spec.Format != "" {
		cmd = cmd.Format(spec.Format)
	}
	if spec.OutputTemplate != "" {
		cmd = cmd.Output(spec.OutputTemplate)
	}
	if spec.NoPlaylist {
		cmd = cmd.NoPlaylist()
	}
	if spec.Subtitles {
		cmd = cmd.WriteSubs()
		if spec.AutoSubs {
			cmd = cmd.WriteAutoSubs()
		}
		if len(spec.SubtitleLangs) > 0 {
			cmd = cmd.SubLangs(strings.Join(spec.SubtitleLangs, ","))
		}
	}
	if spec.Thumbnail {
		cmd = cmd.WriteThumbnail()
	}

	if onProgress != nil {
		cmd = cmd.ProgressFunc(c.progressInterval, func(update goytdlp.ProgressUpdate) {
			onProgress(progressEvent(update))
		})
	}

	c.logger.Info("downloading",
		logging.String("url", spec.URL),
		logging.String("format", spec.Format))

	res, err := cmd.Run(ctx, spec.URL)
	if err != nil {
		return nil, services.Wrap(services.ErrDownload, "ytdlp", "download", spec.URL, err)
	}

	out := &DownloadOutput{}
	if infos, infoErr := res.GetExtractedInfo(); infoErr == nil && len(infos) > 0 {
		if infos[0].Filename != nil {
			out.Filename = *infos[0].Filename
		}
		if infos[0].Title != nil {
			out.Title = *infos[0].Title
		}
	}
	return out, nil
}

// Subtitles fetches subtitle tracks without downloading media, returning a
// map of language to the file written for it.
func (c *Client) Subtitles(ctx context.Context, url string, langs []string, autoGenerated bool, format, outputTemplate, searchDir string) (map[string]string, error) {
	cmd := c.command().
		SkipDownload().
		NoWarnings().
		WriteSubs()
	if autoGenerated {
		cmd = cmd.WriteAutoSubs()
	}
	if len(langs) > 0 {
		cmd = cmd.SubLangs(strings.Join(langs, ","))
	}
	if format != "" {
		cmd = cmd.SubFormat(format)
	}
	if outputTemplate != "" {
		cmd = cmd.Output(outputTemplate)
	}

	if _, err := cmd.Run(ctx, url); err != nil {
		return nil, services.Wrap(services.ErrDownload, "ytdlp", "subtitles", url, err)
	}
	return FindSubtitleFiles(searchDir, langs), nil
}

// Thumbnail fetches the video thumbnail without downloading media and
// returns the image path, or an empty string when none was written.
func (c *Client) Thumbnail(ctx context.Context, url, outputTemplate, searchDir string) (string, error) {
	cmd := c.command().
		SkipDownload().
		NoWarnings().
		WriteThumbnail()
	if outputTemplate != "" {
		cmd = cmd.Output(outputTemplate)
	}

	res, err := cmd.Run(ctx, url)
	if err != nil {
		return "", services.Wrap(services.ErrDownload, "ytdlp", "thumbnail", url, err)
	}

	title := ""
	if infos, infoErr := res.GetExtractedInfo(); infoErr == nil && len(infos) > 0 && infos[0].Title != nil {
		title = *infos[0].Title
	}
	return FindThumbnailFile(searchDir, title), nil
}

func progressEvent(update goytdlp.ProgressUpdate) media.ProgressEvent {
	ev := media.ProgressEvent{
		Stage:           "downloading",
		Percent:         -1,
		TotalBytes:      int64(update.TotalBytes),
		DownloadedBytes: int64(update.DownloadedBytes),
		Timestamp:       time.Now().UTC(),
	}
	if update.TotalBytes > 0 {
		ev.Percent = float64(update.DownloadedBytes) / float64(update.TotalBytes) * 100
	}
	if !update.Started.IsZero() {
		if elapsed := time.Since(update.Started); elapsed > 0 {
			ev.Speed = float64(update.DownloadedBytes) / elapsed.Seconds()
		}
	}
	if eta := update.ETA(); eta > 0 {
		ev.ETA = int(eta.Seconds())
	}
	if update.Info != nil && update.Info.Filename != nil {
		ev.Filename = *update.Info.Filename
	}
	return ev
}
