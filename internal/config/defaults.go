package config

const (
	TransferModeLocal   = "local"
	TransferModeService = "service"
)

const (
	defaultMediaRoot              = "/mnt/media"
	defaultStagingDir             = "~/.local/share/arcmigrate/staging"
	defaultStateDir               = "~/.local/share/arcmigrate"
	defaultLogDir                 = "~/.local/share/arcmigrate/logs"
	defaultStopFile               = "~/.local/share/arcmigrate/soft_stop"
	defaultExcludeCodec           = "H.264"
	defaultLimitFiles             = 500
	defaultCatalogRequestTimeout  = 60
	defaultCatalogSearchTimeout   = 300
	defaultSearchSettleSeconds    = 60
	defaultDeleteRecheckDelay     = 10
	defaultRetryAttempts          = 3
	defaultTransferRequestTimeout = 600
	defaultTransferPollInterval   = 10
	defaultTransferPollAttempts   = 600
	defaultScanRequestTimeout     = 60
	defaultScanPollAttempts       = 100
	defaultScanUser               = "robot"
	defaultFFmpegBinary           = "ffmpeg"
	defaultFFprobeBinary          = "ffprobe"
	defaultContainerExt           = ".mov"
	defaultTimeoutFactor          = 2.0
	defaultMinEncodeTimeout       = 60
	defaultPreset                 = "medium"
	defaultCRF                    = 22
	defaultAudioBitrate           = "224k"
	defaultDurationTolerance      = 0.05
	defaultSizeTolerance          = 0.05
	defaultMinViableBytes         = 10
	defaultMatchSizeSlack         = 10
	defaultMaxPayloadBytes        = 65535
	defaultMinPlausibleYear       = 2015
	defaultSchedule               = "0 14 * * *"
	defaultDrainChecks            = 6
	defaultDrainInterval          = 600
	defaultNotifyRequestTimeout   = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogRetentionDays       = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			MediaRoot:  defaultMediaRoot,
			StagingDir: defaultStagingDir,
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
		},
		Catalog: Catalog{
			ExcludeCodec:        defaultExcludeCodec,
			LimitFiles:          defaultLimitFiles,
			RequestTimeout:      defaultCatalogRequestTimeout,
			SearchTimeout:       defaultCatalogSearchTimeout,
			SearchSettleSeconds: defaultSearchSettleSeconds,
			DeleteRecheckDelay:  defaultDeleteRecheckDelay,
			RetryAttempts:       defaultRetryAttempts,
		},
		Transfer: Transfer{
			Mode:           TransferModeLocal,
			RequestTimeout: defaultTransferRequestTimeout,
			PollInterval:   defaultTransferPollInterval,
			PollAttempts:   defaultTransferPollAttempts,
		},
		Scan: Scan{
			User:           defaultScanUser,
			RequestTimeout: defaultScanRequestTimeout,
			PollAttempts:   defaultScanPollAttempts,
		},
		Encoder: Encoder{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			ContainerExt:  defaultContainerExt,
			TimeoutFactor: defaultTimeoutFactor,
			MinTimeout:    defaultMinEncodeTimeout,
			Preset:        defaultPreset,
			CRF:           defaultCRF,
			AudioBitrate:  defaultAudioBitrate,
		},
		Migration: Migration{
			DurationTolerance: defaultDurationTolerance,
			SizeTolerance:     defaultSizeTolerance,
			MinViableBytes:    defaultMinViableBytes,
			MatchSizeSlack:    defaultMatchSizeSlack,
			MaxPayloadBytes:   defaultMaxPayloadBytes,
			MinPlausibleYear:  defaultMinPlausibleYear,
			Schedule:          defaultSchedule,
			StopFile:          defaultStopFile,
			DrainChecks:       defaultDrainChecks,
			DrainInterval:     defaultDrainInterval,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
