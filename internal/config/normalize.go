package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDownloads()
	c.normalizeRetention()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		c.Paths.DownloadDir = defaultDownloadDir
	}
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeDownloads() {
	if c.Downloads.Workers <= 0 {
		c.Downloads.Workers = defaultWorkers
	}
	if c.Downloads.QueueCapacity <= 0 {
		c.Downloads.QueueCapacity = defaultQueueCapacity
	}
	c.Downloads.PublicPrefix = strings.TrimSpace(c.Downloads.PublicPrefix)
	if c.Downloads.PublicPrefix == "" {
		c.Downloads.PublicPrefix = defaultPublicPrefix
	}
	if !strings.HasPrefix(c.Downloads.PublicPrefix, "/") {
		c.Downloads.PublicPrefix = "/" + c.Downloads.PublicPrefix
	}
	c.Downloads.PublicPrefix = strings.TrimRight(c.Downloads.PublicPrefix, "/")
	c.Downloads.BaseURL = strings.TrimRight(strings.TrimSpace(c.Downloads.BaseURL), "/")
}

func (c *Config) normalizeRetention() {
	if c.Retention.MaxAgeHours <= 0 {
		c.Retention.MaxAgeHours = defaultRetentionHours
	}
	if c.Retention.SweepIntervalMinutes <= 0 {
		c.Retention.SweepIntervalMinutes = defaultSweepIntervalMinutes
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// applyEnvOverrides layers FETCHD_* environment variables over file values.
func (c *Config) applyEnvOverrides() {
	if value, ok := lookupEnv("FETCHD_DOWNLOAD_DIR"); ok {
		c.Paths.DownloadDir = value
	}
	if value, ok := lookupEnv("FETCHD_LOG_DIR"); ok {
		c.Paths.LogDir = value
	}
	if value, ok := lookupEnv("FETCHD_API_BIND"); ok {
		c.Paths.APIBind = value
	}
	if value, ok := lookupEnvInt("FETCHD_WORKERS"); ok {
		c.Downloads.Workers = value
	}
	if value, ok := lookupEnv("FETCHD_BASE_URL"); ok {
		c.Downloads.BaseURL = value
	}
	if value, ok := lookupEnvInt("FETCHD_RETENTION_HOURS"); ok {
		c.Retention.MaxAgeHours = value
	}
	if value, ok := lookupEnv("FETCHD_NTFY_TOPIC"); ok {
		c.Notifications.NtfyTopic = value
	}
	if value, ok := lookupEnv("FETCHD_LOG_LEVEL"); ok {
		c.Logging.Level = value
	}
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}

func lookupEnvInt(key string) (int, bool) {
	raw, ok := lookupEnv(key)
	if !ok {
		return 0, false
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return value, true
}
