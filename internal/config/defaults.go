package config

const (
	defaultDataDir           = "~/.local/share/datamart"
	defaultLogDir            = "~/.local/share/datamart/logs"
	defaultAPIBind           = "127.0.0.1:7490"
	defaultTimeUnitMS        = 100
	defaultJitter            = 0.1
	defaultChainTime         = 5
	defaultReviewTime        = 30
	defaultProgressBucket    = 10
	defaultNtfyTimeout       = 10
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultConfigPath        = "~/.config/datamart/config.toml"
	defaultProjectConfigFile = "datamart.toml"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Simulation: Simulation{
			TimeUnitMS: defaultTimeUnitMS,
			Jitter:     defaultJitter,
			ChainTime:  defaultChainTime,
			ReviewTime: defaultReviewTime,
		},
		Tracker: Tracker{
			Persist:           true,
			ResumeInterrupted: true,
			ProgressBucket:    defaultProgressBucket,
		},
		Notifications: Notifications{
			RequestTimeout:  defaultNtfyTimeout,
			NotifyCompleted: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
