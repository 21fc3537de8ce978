package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"log/slog"

	"grabit/internal/logging"
	"grabit/internal/services"
)

// commandRunner executes a binary and returns its combined output.
type commandRunner func(ctx context.Context, name string, args ...string) (string, error)

// Client drives ffmpeg and ffprobe for muxing, transcoding and inspection.
type Client struct {
	binary string
	probe  string
	logger *slog.Logger
	run    commandRunner
}

// New constructs an ffmpeg client around the given binaries.
func New(binary, probeBinary string, logger *slog.Logger) *Client {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	if strings.TrimSpace(probeBinary) == "" {
		probeBinary = "ffprobe"
	}
	return &Client{
		binary: binary,
		probe:  probeBinary,
		logger: logging.NewComponentLogger(logger, "ffmpeg"),
		run:    defaultCommandRunner,
	}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (c *Client) WithCommandRunner(r commandRunner) {
	if c != nil && r != nil {
		c.run = r
	}
}

// Render muxes separately downloaded video and audio streams into a single
// output file. The video stream is copied untouched; audio is re-encoded to
// AAC so the result plays everywhere.
func (c *Client) Render(ctx context.Context, videoPath, audioPath, outputPath string) error {
	args := []string{
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-y",
		outputPath,
	}
	c.logger.Info("rendering", logging.String("video", videoPath), logging.String("audio", audioPath), logging.String("output", outputPath))
	if out, err := c.run(ctx, c.binary, args...); err != nil {
		return services.Wrap(services.ErrRender, "ffmpeg", "render", tail(out), err)
	}
	return nil
}

// ExtractAudio strips the video track and writes an mp3.
func (c *Client) ExtractAudio(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-i", inputPath,
		"-vn",
		"-acodec", "mp3",
		"-ab", "192k",
		"-ar", "44100",
		"-y",
		outputPath,
	}
	if out, err := c.run(ctx, c.binary, args...); err != nil {
		return services.Wrap(services.ErrRender, "ffmpeg", "extract audio", tail(out), err)
	}
	return nil
}

// Convert rewrites a media file into the container implied by the output
// path extension. mp4 re-encodes to H.264/AAC, webm to VP9/Vorbis, and mkv
// remuxes without transcoding.
func (c *Client) Convert(ctx context.Context, inputPath, outputPath string) error {
	var args []string
	switch normalizedExt(outputPath) {
	case "mp4":
		args = []string{"-i", inputPath, "-c:v", "libx264", "-c:a", "aac", "-movflags", "+faststart", "-y", outputPath}
	case "webm":
		args = []string{"-i", inputPath, "-c:v", "libvpx-vp9", "-c:a", "libvorbis", "-y", outputPath}
	case "mkv":
		args = []string{"-i", inputPath, "-c:v", "copy", "-c:a", "copy", "-y", outputPath}
	default:
		return services.Wrap(services.ErrValidation, "ffmpeg", "convert",
			fmt.Sprintf("unsupported output container %q", normalizedExt(outputPath)), nil)
	}
	if out, err := c.run(ctx, c.binary, args...); err != nil {
		return services.Wrap(services.ErrRender, "ffmpeg", "convert", tail(out), err)
	}
	return nil
}

// ProbeReport is the subset of ffprobe output the daemon reports.
type ProbeReport struct {
	Format  ProbeFormat   `json:"format"`
	Streams []ProbeStream `json:"streams"`
}

// ProbeFormat describes the container.
type ProbeFormat struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// ProbeStream describes one stream in the container.
type ProbeStream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// Probe inspects a media file with ffprobe.
func (c *Client) Probe(ctx context.Context, path string) (*ProbeReport, error) {
	out, err := c.run(ctx, c.probe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "ffprobe", "probe", tail(out), err)
	}
	var report ProbeReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "ffprobe", "probe", "unparseable output", err)
	}
	return &report, nil
}

// Available reports whether the ffmpeg binary responds to -version.
func (c *Client) Available(ctx context.Context) bool {
	_, err := c.run(ctx, c.binary, "-version")
	return err == nil
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

func normalizedExt(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 || idx == len(path)-1 {
		return ""
	}
	return strings.ToLower(path[idx+1:])
}

// tail trims command output down to its last line for error context.
func tail(output string) string {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return ""
	}
	lines := strings.Split(trimmed, "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
