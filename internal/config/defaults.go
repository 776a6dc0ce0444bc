package config

const (
	defaultDownloadDir          = "~/.local/share/fetchd/downloads"
	defaultLogDir               = "~/.local/share/fetchd/logs"
	defaultAPIBind              = "0.0.0.0:8081"
	defaultWorkers              = 4
	defaultQueueCapacity        = 256
	defaultPublicPrefix         = "/downloads"
	defaultRetentionHours       = 3
	defaultSweepIntervalMinutes = 60
	defaultNotifyTimeout        = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DownloadDir: defaultDownloadDir,
			LogDir:      defaultLogDir,
			APIBind:     defaultAPIBind,
		},
		Downloads: Downloads{
			Workers:       defaultWorkers,
			QueueCapacity: defaultQueueCapacity,
			PublicPrefix:  defaultPublicPrefix,
		},
		Retention: Retention{
			MaxAgeHours:          defaultRetentionHours,
			SweepIntervalMinutes: defaultSweepIntervalMinutes,
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
