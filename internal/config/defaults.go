package config

const (
	defaultDownloadDir          = "~/.local/share/grabit/downloads"
	defaultTempDir              = "~/.local/share/grabit/tmp"
	defaultLogDir               = "~/.local/share/grabit/logs"
	defaultStateDir             = "~/.local/share/grabit"
	defaultBind                 = "0.0.0.0:8000"
	defaultHeartbeatInterval    = 30
	defaultMaxConnections       = 100
	defaultMaxConcurrent        = 5
	defaultDirectQualityCeiling = 720
	defaultQuality              = 720
	defaultFormat               = "mp4"
	defaultFilenamePrefix       = "GRABIT"
	defaultTaskRetentionMinutes = 60
	defaultTaskCapacity         = 1000
	defaultCleanupInterval      = 300
	defaultYtDlpBinary          = "yt-dlp"
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultNotifyTimeout        = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DownloadDir: defaultDownloadDir,
			TempDir:     defaultTempDir,
			LogDir:      defaultLogDir,
			StateDir:    defaultStateDir,
		},
		Server: Server{
			Bind:              defaultBind,
			HeartbeatInterval: defaultHeartbeatInterval,
			MaxConnections:    defaultMaxConnections,
		},
		Downloads: Downloads{
			MaxConcurrent:        defaultMaxConcurrent,
			DirectQualityCeiling: defaultDirectQualityCeiling,
			DefaultQuality:       defaultQuality,
			DefaultFormat:        defaultFormat,
			FilenamePrefix:       defaultFilenamePrefix,
			PrefixFilenames:      true,
			SubtitleLanguages:    []string{"en"},
		},
		Tasks: Tasks{
			RetentionMinutes: defaultTaskRetentionMinutes,
			Capacity:         defaultTaskCapacity,
			CleanupInterval:  defaultCleanupInterval,
		},
		Tools: Tools{
			YtDlp:   defaultYtDlpBinary,
			FFmpeg:  defaultFFmpegBinary,
			FFprobe: defaultFFprobeBinary,
		},
		History: History{
			Enabled: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
