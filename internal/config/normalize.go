package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"grabit/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeDownloads()
	c.normalizeTasks()
	c.normalizeTools()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	dirs := []struct {
		target   *string
		fallback string
		field    string
	}{
		{&c.Paths.DownloadDir, defaultDownloadDir, "paths.download_dir"},
		{&c.Paths.TempDir, defaultTempDir, "paths.temp_dir"},
		{&c.Paths.LogDir, defaultLogDir, "paths.log_dir"},
		{&c.Paths.StateDir, defaultStateDir, "paths.state_dir"},
	}
	for _, dir := range dirs {
		expanded, err := expandPath(fallbackIfBlank(*dir.target, dir.fallback))
		if err != nil {
			return fmt.Errorf("%s: %w", dir.field, err)
		}
		*dir.target = expanded
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = fallbackIfBlank(c.Server.Bind, defaultBind)
	if c.Server.HeartbeatInterval <= 0 {
		c.Server.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Server.MaxConnections <= 0 {
		c.Server.MaxConnections = defaultMaxConnections
	}
}

func (c *Config) normalizeDownloads() {
	if c.Downloads.MaxConcurrent <= 0 {
		c.Downloads.MaxConcurrent = defaultMaxConcurrent
	}
	if c.Downloads.DirectQualityCeiling <= 0 {
		c.Downloads.DirectQualityCeiling = defaultDirectQualityCeiling
	}
	if c.Downloads.DefaultQuality <= 0 {
		c.Downloads.DefaultQuality = defaultQuality
	}
	c.Downloads.DefaultFormat = strings.ToLower(strings.TrimSpace(c.Downloads.DefaultFormat))
	if c.Downloads.DefaultFormat == "" {
		c.Downloads.DefaultFormat = defaultFormat
	}
	c.Downloads.FilenamePrefix = strings.TrimSpace(c.Downloads.FilenamePrefix)
	langs := language.NormalizeList(c.Downloads.SubtitleLanguages)
	if len(langs) == 0 {
		langs = []string{"en"}
	}
	c.Downloads.SubtitleLanguages = langs
}

func (c *Config) normalizeTasks() {
	if c.Tasks.RetentionMinutes <= 0 {
		c.Tasks.RetentionMinutes = defaultTaskRetentionMinutes
	}
	if c.Tasks.Capacity <= 0 {
		c.Tasks.Capacity = defaultTaskCapacity
	}
	if c.Tasks.CleanupInterval <= 0 {
		c.Tasks.CleanupInterval = defaultCleanupInterval
	}
}

func (c *Config) normalizeTools() {
	c.Tools.YtDlp = fallbackIfBlank(c.Tools.YtDlp, defaultYtDlpBinary)
	c.Tools.FFmpeg = fallbackIfBlank(c.Tools.FFmpeg, defaultFFmpegBinary)
	c.Tools.FFprobe = fallbackIfBlank(c.Tools.FFprobe, defaultFFprobeBinary)
}

// fallbackIfBlank trims value and substitutes fallback when nothing is left.
func fallbackIfBlank(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}

func (c *Config) normalizeHistory() error {
	var err error
	if strings.TrimSpace(c.History.Path) == "" {
		c.History.Path = filepath.Join(c.Paths.StateDir, "history.db")
	}
	if c.History.Path, err = expandPath(c.History.Path); err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("GRABIT_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format != "json" {
		format = "console"
	}
	c.Logging.Format = format
	c.Logging.Level = strings.ToLower(fallbackIfBlank(c.Logging.Level, defaultLogLevel))
}
