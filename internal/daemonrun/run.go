// Package daemonrun hosts the daemon process runtime loop shared by the
// serve command. It wires logging, the stream hub, pid file management, the
// daemon itself, and the IPC server, then blocks until a signal or a stop
// request arrives.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"grabit/internal/config"
	"grabit/internal/daemon"
	"grabit/internal/deps"
	"grabit/internal/ipc"
	"grabit/internal/logging"
)

// Options carries the flag overrides the serve command forwards into the
// runtime loop. Blank fields fall back to the configuration file.
type Options struct {
	LogLevel   string
	LogFormat  string
	SocketPath string
}

// Run starts the grabit daemon runtime loop and blocks until shutdown.
func Run(parent context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("missing configuration")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logPath := newRunLogPath(cfg.Paths.LogDir)
	hub := logging.NewStreamHub(4096)
	logger, err := buildLogger(cfg, opts, logPath, hub)
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	if err := repointCurrentLog(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update grabit.log link: %v\n", err)
	}
	logToolSnapshot(logger, cfg)

	pidPath := cfg.PIDPath()
	if err := recordPID(pidPath); err != nil {
		return fmt.Errorf("record pid: %w", err)
	}
	defer os.Remove(pidPath)

	d, err := daemon.New(cfg, logger, daemon.WithLogStream(hub))
	if err != nil {
		return fmt.Errorf("build daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(ctx, socketPath(cfg, opts), d, logger)
	if err != nil {
		return fmt.Errorf("listen on control socket: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	select {
	case <-ctx.Done():
	case <-d.ShutdownRequested():
	}
	logger.Info("grabit daemon shutting down")
	return nil
}

// newRunLogPath names one run's log file after its UTC start instant.
func newRunLogPath(logDir string) string {
	stamp := time.Now().UTC().Format("20060102T150405.000Z")
	return filepath.Join(logDir, fmt.Sprintf("grabit-%s.log", stamp))
}

func buildLogger(cfg *config.Config, opts Options, logPath string, hub *logging.StreamHub) (*slog.Logger, error) {
	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	format := strings.TrimSpace(opts.LogFormat)
	if format == "" {
		format = cfg.Logging.Format
	}
	return logging.New(logging.Options{
		Level:            level,
		Format:           format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Stream:           hub,
	})
}

func socketPath(cfg *config.Config, opts Options) string {
	if path := strings.TrimSpace(opts.SocketPath); path != "" {
		return path
	}
	return cfg.SocketPath()
}

// repointCurrentLog makes logDir/grabit.log track the newest run log. A
// symlink is preferred; filesystems without symlink support get a hard link.
func repointCurrentLog(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "grabit.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear stale log pointer: %w", err)
	}
	if os.Symlink(target, current) == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("refresh log pointer: %w", err)
	}
	return nil
}

func recordPID(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644)
}

func logToolSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	ytdlp := deps.Resolve("yt-dlp", cfg.Tools.YtDlp, "")
	ffmpeg := deps.Resolve("FFmpeg", cfg.Tools.FFmpeg, "")
	ffprobe := deps.Resolve("FFprobe", cfg.Tools.FFprobe, "")
	logger.Info("external tool snapshot",
		logging.Bool("ytdlp_available", ytdlp.Available),
		logging.String("ytdlp_binary", ytdlp.Command),
		logging.Bool("ffmpeg_available", ffmpeg.Available),
		logging.String("ffmpeg_binary", ffmpeg.Command),
		logging.Bool("ffprobe_available", ffprobe.Available),
		logging.String("ffprobe_binary", ffprobe.Command),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	)
}
