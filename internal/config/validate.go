package config

import (
	"errors"
	"fmt"
	"net"

	"grabit/internal/media"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDownloads(); err != nil {
		return err
	}
	if err := c.validateTasks(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if _, _, err := net.SplitHostPort(c.Server.Bind); err != nil {
		return fmt.Errorf("server.bind %q is not a host:port address: %w", c.Server.Bind, err)
	}
	if c.Server.HeartbeatInterval <= 0 {
		return errors.New("server.heartbeat_interval must be positive")
	}
	if c.Server.MaxConnections <= 0 {
		return errors.New("server.max_connections must be positive")
	}
	return nil
}

func (c *Config) validateDownloads() error {
	if c.Downloads.MaxConcurrent <= 0 {
		return errors.New("downloads.max_concurrent must be positive")
	}
	if !media.QualityInRange(c.Downloads.DefaultQuality) {
		return fmt.Errorf("downloads.default_quality %d outside supported range %d-%d",
			c.Downloads.DefaultQuality, media.MinQuality, media.MaxQuality)
	}
	if !media.QualityInRange(c.Downloads.DirectQualityCeiling) {
		return fmt.Errorf("downloads.direct_quality_ceiling %d outside supported range %d-%d",
			c.Downloads.DirectQualityCeiling, media.MinQuality, media.MaxQuality)
	}
	if !media.FormatSupported(c.Downloads.DefaultFormat) {
		return fmt.Errorf("downloads.default_format %q is not one of %v",
			c.Downloads.DefaultFormat, media.SupportedFormats())
	}
	return nil
}

func (c *Config) validateTasks() error {
	if c.Tasks.RetentionMinutes <= 0 {
		return errors.New("tasks.retention_minutes must be positive")
	}
	if c.Tasks.Capacity <= 0 {
		return errors.New("tasks.capacity must be positive")
	}
	if c.Tasks.CleanupInterval <= 0 {
		return errors.New("tasks.cleanup_interval must be positive")
	}
	return nil
}
