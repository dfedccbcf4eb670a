package config

const (
	defaultStagingDir        = "~/.local/share/recipecast/staging"
	defaultLogDir            = "~/.local/share/recipecast/logs"
	defaultServerBaseURL     = "http://localhost:8000"
	defaultUploadTimeout     = 600
	defaultSizeCeilingBytes  = 50 * 1024 * 1024
	defaultMaxDimension      = 720
	defaultTargetBitrateBps  = 2_000_000
	defaultFrameRate         = 30
	defaultNotifyTimeout     = 10
	defaultQueuePollInterval = 5
	defaultSettleSeconds     = 2
	defaultHeartbeatInterval = 10
	defaultHeartbeatTimeout  = 300
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() *Config {
	return &Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
		},
		Server: Server{
			BaseURL:       defaultServerBaseURL,
			UploadTimeout: defaultUploadTimeout,
		},
		Video: Video{
			SizeCeilingBytes: defaultSizeCeilingBytes,
			MaxDimension:     defaultMaxDimension,
			TargetBitrateBps: defaultTargetBitrateBps,
			FrameRate:        defaultFrameRate,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Publish:        true,
			Errors:         true,
		},
		Workflow: Workflow{
			QueuePollInterval: defaultQueuePollInterval,
			SettleSeconds:     defaultSettleSeconds,
			HeartbeatInterval: defaultHeartbeatInterval,
			HeartbeatTimeout:  defaultHeartbeatTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
