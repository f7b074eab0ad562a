package config

// Database drivers understood by internal/database.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Processing lanes. Each lane owns its own worker pool.
const (
	LaneAttachments   = "attachments"
	LaneFaceDetection = "face_detection"
	LaneDefault       = "default"
)

const (
	defaultConfigPath               = "~/.config/burstline/config.toml"
	defaultDataDir                  = "~/.local/share/burstline"
	defaultAssetDir                 = "~/.local/share/burstline/assets"
	defaultLogDir                   = "~/.local/share/burstline/logs"
	defaultAssetBaseURL             = "/assets"
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultExiftool                 = "exiftool"
	defaultToolTimeoutSeconds       = 120
	defaultQueuePollInterval        = 2
	defaultErrorRetryInterval       = 10
	defaultHeartbeatInterval        = 15
	defaultHeartbeatTimeout         = 120
	defaultRetryMaxAttempts         = 3
	defaultRetryInitialBackoff      = 15
	defaultRetryMaxBackoff          = 600
	defaultNotifyRequestTimeout     = 10
	defaultPortraitPadding          = 0.6
	defaultJPEGQuality              = 85
	defaultVariantModeFit           = "fit"
	defaultVariantModeFill          = "fill"
	defaultAttachmentWorkers        = 2
	defaultFaceDetectionWorkers     = 1
	defaultDefaultLaneWorkers       = 2
	defaultThumbSize                = 300
	defaultMediumSize               = 800
	defaultGallerySize              = 1200
	defaultLargeSize                = 2048
	defaultSmallFaceCropSize        = 150
	defaultLargeFaceCropSize        = 400
	defaultNotificationsJobFailures = true
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:      defaultDataDir,
			AssetDir:     defaultAssetDir,
			LogDir:       defaultLogDir,
			AssetBaseURL: defaultAssetBaseURL,
		},
		Database: Database{
			Driver: DriverSQLite,
		},
		Assets: Assets{
			Variants: map[string]Variant{
				"thumb":   {Width: defaultThumbSize, Height: defaultThumbSize, Mode: defaultVariantModeFill, Quality: 80},
				"medium":  {Width: defaultMediumSize, Height: defaultMediumSize, Mode: defaultVariantModeFit, Quality: defaultJPEGQuality},
				"gallery": {Width: defaultGallerySize, Height: defaultGallerySize, Mode: defaultVariantModeFit, Quality: defaultJPEGQuality},
				"large":   {Width: defaultLargeSize, Height: defaultLargeSize, Mode: defaultVariantModeFit, Quality: 90},
			},
			DefaultVariants: []string{"thumb", "medium", "gallery", "large"},
			FaceCropSizes:   []int{defaultSmallFaceCropSize, defaultLargeFaceCropSize},
			PortraitPadding: defaultPortraitPadding,
		},
		Tools: Tools{
			Exiftool:       defaultExiftool,
			TimeoutSeconds: defaultToolTimeoutSeconds,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
			Lanes: map[string]int{
				LaneAttachments:   defaultAttachmentWorkers,
				LaneFaceDetection: defaultFaceDetectionWorkers,
				LaneDefault:       defaultDefaultLaneWorkers,
			},
		},
		Retry: Retry{
			MaxAttempts:           defaultRetryMaxAttempts,
			InitialBackoffSeconds: defaultRetryInitialBackoff,
			MaxBackoffSeconds:     defaultRetryMaxBackoff,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobFailures:    defaultNotificationsJobFailures,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
