package config

const (
	defaultOutputDir          = "~/clef/output"
	defaultStagingDir         = "~/.local/share/clef/staging"
	defaultLogDir             = "~/.local/share/clef/logs"
	defaultServerBind         = "127.0.0.1:7519"
	defaultSampleRate         = 44100
	defaultChannels           = 1
	defaultDownloadTimeout    = 600
	defaultDecodeTimeout      = 120
	defaultOnsetThreshold     = 0.5
	defaultFrameThreshold     = 0.3
	defaultMinNoteSeconds     = 0.1
	defaultMinFrequencyHz     = 80
	defaultMaxFrequencyHz     = 8000
	defaultTranscribeTimeout  = 300
	defaultBasicPitchBinary   = "basic-pitch"
	defaultQuantizeResolution = "1/4"
	defaultTempoBPM           = 120
	defaultConvertTimeout     = 120
	defaultRefinementStyle    = "general"
	defaultLLMBaseURL         = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel           = "google/gemini-3-flash-preview"
	defaultLLMReferer         = "https://github.com/clef-audio/clef"
	defaultLLMTitle           = "Clef Notation Refiner"
	defaultLLMTimeoutSeconds  = 120
	defaultRenderTimeout      = 300
	defaultQueuePollInterval  = 5
	defaultStageRetryLimit    = 1
	defaultNtfyRequestTimeout = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultWatchSettleSeconds = 3
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:  defaultOutputDir,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			ServerBind: defaultServerBind,
		},
		Ingest: Ingest{
			SampleRate:      defaultSampleRate,
			Channels:        defaultChannels,
			DownloadTimeout: defaultDownloadTimeout,
			DecodeTimeout:   defaultDecodeTimeout,
		},
		Transcription: Transcription{
			OnsetThreshold:   defaultOnsetThreshold,
			FrameThreshold:   defaultFrameThreshold,
			MinNoteSeconds:   defaultMinNoteSeconds,
			MinFrequencyHz:   defaultMinFrequencyHz,
			MaxFrequencyHz:   defaultMaxFrequencyHz,
			Timeout:          defaultTranscribeTimeout,
			BasicPitchBinary: defaultBasicPitchBinary,
		},
		Conversion: Conversion{
			Quantize:             true,
			QuantizeResolution:   defaultQuantizeResolution,
			RemoveRedundantRests: true,
			ResolveOverlaps:      true,
			InferKey:             true,
			InferMeter:           true,
			InsertDefaultTempo:   true,
			DefaultTempoBPM:      defaultTempoBPM,
			Timeout:              defaultConvertTimeout,
		},
		Refinement: Refinement{
			Enabled:        false,
			Style:          defaultRefinementStyle,
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Export: Export{
			GeneratePDF:   false,
			RenderTimeout: defaultRenderTimeout,
		},
		Workflow: Workflow{
			QueuePollInterval: defaultQueuePollInterval,
			StageRetryLimit:   defaultStageRetryLimit,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
			Conversions:    true,
			Queue:          true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Watch: Watch{
			Enabled:       false,
			SettleSeconds: defaultWatchSettleSeconds,
		},
	}
}
