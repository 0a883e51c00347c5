package config

const (
	defaultConfigPath           = "~/.config/scenecut/config.toml"
	defaultStoreDir             = "~/.local/share/scenecut/store"
	defaultLogDir               = "~/.local/share/scenecut/logs"
	defaultArchiveDir           = "~/.local/share/scenecut/archive"
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultLogRetentionDays     = 30
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultDetectionMethod      = "cut"
	defaultContentThreshold     = 27.0
	defaultFadeThreshold        = 5.0
	defaultMinSceneFrames       = 5
	defaultAudioInterval        = 1.0
	defaultHighEnergyThreshold  = 0.7
	defaultWhisperXModel        = "large-v3-turbo"
	defaultWhisperXVADMethod    = "silero"
	defaultTranscriptionTimeout = 300
	defaultRenderTimeout        = 600
	defaultProbeTimeout         = 60
	defaultExportTimeout        = 600
	defaultProxyWidth           = 640
	defaultMezzanineWidth       = 1280
	defaultProxyCRF             = 28
	defaultMezzanineCRF         = 23
	defaultEDLFrameRate         = 30
	defaultCacheMaxGiB          = 50
	defaultRenderWorkers        = 2
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StoreDir:      defaultStoreDir,
			LogDir:        defaultLogDir,
			ScratchDir:    defaultScratchDir(),
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		Detection: Detection{
			Method:           defaultDetectionMethod,
			ContentThreshold: defaultContentThreshold,
			FadeThreshold:    defaultFadeThreshold,
			MinSceneFrames:   defaultMinSceneFrames,
		},
		Audio: Audio{
			IntervalSeconds:     defaultAudioInterval,
			HighEnergyThreshold: defaultHighEnergyThreshold,
		},
		Transcription: Transcription{
			Enabled:        true,
			Model:          defaultWhisperXModel,
			VADMethod:      defaultWhisperXVADMethod,
			Language:       "en",
			TimeoutSeconds: defaultTranscriptionTimeout,
		},
		Render: Render{
			Workers:        defaultRenderWorkers,
			TimeoutSeconds: defaultRenderTimeout,
			ProbeTimeout:   defaultProbeTimeout,
			ProxyWidth:     defaultProxyWidth,
			MezzanineWidth: defaultMezzanineWidth,
			ProxyCRF:       defaultProxyCRF,
			MezzanineCRF:   defaultMezzanineCRF,
		},
		Export: Export{
			TimeoutSeconds: defaultExportTimeout,
			WriteEDL:       true,
			EDLFrameRate:   defaultEDLFrameRate,
		},
		Cache: Cache{
			MaxGiB: defaultCacheMaxGiB,
		},
		Archive: Archive{
			Dir: defaultArchiveDir,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
