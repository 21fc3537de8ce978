package ffmpeg

import (
	"context"
	"errors"
	"strings"
	"testing"

	"grabit/internal/logging"
	"grabit/internal/services"
)

type recordedCall struct {
	name string
	args []string
}

func newRecordingClient(output string, err error) (*Client, *[]recordedCall) {
	calls := &[]recordedCall{}
	client := New("ffmpeg", "ffprobe", logging.NewNop())
	client.WithCommandRunner(func(ctx context.Context, name string, args ...string) (string, error) {
		*calls = append(*calls, recordedCall{name: name, args: args})
		return output, err
	})
	return client, calls
}

func TestRenderArgs(t *testing.T) {
	client, calls := newRecordingClient("", nil)
	if err := client.Render(context.Background(), "/tmp/video.webm", "/tmp/audio.m4a", "/out/final.mp4"); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("expected one invocation, got %d", len(*calls))
	}
	call := (*calls)[0]
	if call.name != "ffmpeg" {
		t.Fatalf("unexpected binary %q", call.name)
	}
	joined := strings.Join(call.args, " ")
	for _, want := range []string{
		"-i /tmp/video.webm",
		"-i /tmp/audio.m4a",
		"-c:v copy",
		"-c:a aac",
		"-b:a 128k",
		"-movflags +faststart",
		"-y /out/final.mp4",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args missing %q: %s", want, joined)
		}
	}
}

func TestRenderFailureClassifiedAsRender(t *testing.T) {
	client, _ := newRecordingClient("ffmpeg version\nConversion failed!", errors.New("exit status 1"))
	err := client.Render(context.Background(), "v", "a", "out")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrRender) {
		t.Fatalf("expected render classification, got %v", err)
	}
	if !strings.Contains(err.Error(), "Conversion failed!") {
		t.Fatalf("expected last output line in error, got %v", err)
	}
}

func TestConvertSelectsCodecsByContainer(t *testing.T) {
	tests := []struct {
		output string
		want   string
	}{
		{"/out/clip.mp4", "libx264"},
		{"/out/clip.webm", "libvpx-vp9"},
		{"/out/clip.mkv", "-c:v copy"},
	}
	for _, tc := range tests {
		client, calls := newRecordingClient("", nil)
		if err := client.Convert(context.Background(), "/in/clip.src", tc.output); err != nil {
			t.Fatalf("Convert(%s) failed: %v", tc.output, err)
		}
		joined := strings.Join((*calls)[0].args, " ")
		if !strings.Contains(joined, tc.want) {
			t.Fatalf("Convert(%s) args missing %q: %s", tc.output, tc.want, joined)
		}
	}

	client, _ := newRecordingClient("", nil)
	if err := client.Convert(context.Background(), "/in/clip.src", "/out/clip.avi"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for avi, got %v", err)
	}
}

func TestProbeParsesReport(t *testing.T) {
	payload := `{
  "format": {"filename": "/out/final.mp4", "format_name": "mov,mp4", "duration": "12.5", "size": "1000", "bit_rate": "640"},
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080},
    {"index": 1, "codec_name": "aac", "codec_type": "audio"}
  ]
}`
	client, calls := newRecordingClient(payload, nil)
	report, err := client.Probe(context.Background(), "/out/final.mp4")
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if (*calls)[0].name != "ffprobe" {
		t.Fatalf("expected ffprobe binary, got %q", (*calls)[0].name)
	}
	if report.Format.FormatName != "mov,mp4" {
		t.Fatalf("unexpected format: %+v", report.Format)
	}
	if len(report.Streams) != 2 || report.Streams[0].Height != 1080 {
		t.Fatalf("unexpected streams: %+v", report.Streams)
	}
}

func TestProbeRejectsGarbage(t *testing.T) {
	client, _ := newRecordingClient("not json", nil)
	if _, err := client.Probe(context.Background(), "x"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestAvailable(t *testing.T) {
	client, calls := newRecordingClient("ffmpeg version 7.0", nil)
	if !client.Available(context.Background()) {
		t.Fatal("expected available")
	}
	if got := (*calls)[0].args; len(got) != 1 || got[0] != "-version" {
		t.Fatalf("unexpected args %v", got)
	}

	broken, _ := newRecordingClient("", errors.New("no such file"))
	if broken.Available(context.Background()) {
		t.Fatal("expected unavailable")
	}
}

func TestExtractAudioArgs(t *testing.T) {
	client, calls := newRecordingClient("", nil)
	if err := client.ExtractAudio(context.Background(), "/in/v.mp4", "/out/a.mp3"); err != nil {
		t.Fatalf("ExtractAudio failed: %v", err)
	}
	joined := strings.Join((*calls)[0].args, " ")
	for _, want := range []string{"-vn", "-acodec mp3", "-ab 192k", "-ar 44100"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args missing %q: %s", want, joined)
		}
	}
}
