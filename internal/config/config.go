package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DownloadDir string `toml:"download_dir"`
	TempDir     string `toml:"temp_dir"`
	LogDir      string `toml:"log_dir"`
	StateDir    string `toml:"state_dir"`
}

// Server contains the HTTP/WebSocket listener configuration.
type Server struct {
	Bind              string `toml:"bind"`
	APIToken          string `toml:"api_token"`
	HeartbeatInterval int    `toml:"heartbeat_interval"`
	MaxConnections    int    `toml:"max_connections"`
}

// Downloads contains retrieval behaviour configuration.
type Downloads struct {
	MaxConcurrent        int      `toml:"max_concurrent"`
	DirectQualityCeiling int      `toml:"direct_quality_ceiling"`
	DefaultQuality       int      `toml:"default_quality"`
	DefaultFormat        string   `toml:"default_format"`
	FilenamePrefix       string   `toml:"filename_prefix"`
	PrefixFilenames      bool     `toml:"prefix_filenames"`
	SubtitleLanguages    []string `toml:"subtitle_languages"`
}

// Tasks contains registry retention configuration.
type Tasks struct {
	RetentionMinutes int `toml:"retention_minutes"`
	Capacity         int `toml:"capacity"`
	CleanupInterval  int `toml:"cleanup_interval"`
}

// Tools contains external binary paths.
type Tools struct {
	YtDlp   string `toml:"ytdlp"`
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
}

// History contains configuration for the download archive.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Notifications configures optional push delivery through ntfy.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging selects the log format and verbosity.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for grabit.
//
// Each field maps to a TOML table:
//   - Paths: download, temp, log, and state directories
//   - Server: bind address, heartbeat interval, connection limit
//   - Downloads: concurrency, quality routing ceiling, naming defaults
//   - Tasks: in-memory registry retention and capacity
//   - Tools: yt-dlp / ffmpeg / ffprobe binary locations
//   - History: sqlite download archive
//   - Notifications: ntfy topic for push alerts
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Server        Server        `toml:"server"`
	Downloads     Downloads     `toml:"downloads"`
	Tasks         Tasks         `toml:"tasks"`
	Tools         Tools         `toml:"tools"`
	History       History       `toml:"history"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath reports where grabit looks for its configuration when
// no explicit path is given.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/grabit/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfgPath, found, err := locateConfigFile(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if found {
		if err := decodeFile(cfgPath, &cfg); err != nil {
			return nil, "", false, err
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, cfgPath, found, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	if err := toml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// locateConfigFile picks the file Load should read. An explicit path is
// honored even when the file is missing; otherwise the user config
// location wins over a grabit.toml in the working directory.
func locateConfigFile(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		switch _, statErr := os.Stat(expanded); {
		case statErr == nil:
			return expanded, true, nil
		case errors.Is(statErr, fs.ErrNotExist):
			return expanded, false, nil
		default:
			return "", false, fmt.Errorf("stat config: %w", statErr)
		}
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if fileExists(defaultPath) {
		return defaultPath, true, nil
	}
	projectPath, err := filepath.Abs("grabit.toml")
	if err != nil {
		return "", false, err
	}
	if fileExists(projectPath) {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// EnsureDirectories creates every directory the daemon writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DownloadDir, c.Paths.TempDir, c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// SocketPath returns the location of the daemon control socket.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "grabit.sock")
}

// LockPath returns the location of the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "grabit.lock")
}

// PIDPath returns the location of the daemon pid file.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "grabit.pid")
}

// expandPath turns a user-supplied path into an absolute one, resolving a
// leading ~ against the current user's home directory.
func expandPath(raw string) (string, error) {
	if raw == "" {
		return raw, nil
	}
	if rest, ok := strings.CutPrefix(raw, "~"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locate home directory: %w", err)
		}
		switch {
		case rest == "":
			raw = home
		case rest[0] == '/' || rest[0] == '\\':
			raw = filepath.Join(home, rest[1:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(raw))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", raw, err)
	}
	return absolute, nil
}

// ExpandPath applies the same tilde and relative path resolution Load uses,
// for callers outside this package.
func ExpandPath(raw string) (string, error) {
	return expandPath(raw)
}

// CreateSample writes a commented starter configuration to path, creating
// parent directories as needed.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
