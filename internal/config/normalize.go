package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeIngest()
	c.normalizeTranscription()
	c.normalizeConversion()
	c.normalizeRefinement()
	c.normalizeExport()
	c.normalizeWorkflow()
	c.normalizeNotifications()
	c.normalizeLogging()
	c.normalizeWatch()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WatchDir) != "" {
		if c.Paths.WatchDir, err = expandPath(c.Paths.WatchDir); err != nil {
			return fmt.Errorf("paths.watch_dir: %w", err)
		}
	}
	c.Paths.ServerBind = strings.TrimSpace(c.Paths.ServerBind)
	if c.Paths.ServerBind == "" {
		c.Paths.ServerBind = defaultServerBind
	}
	return nil
}

func (c *Config) normalizeIngest() {
	if c.Ingest.SampleRate <= 0 {
		c.Ingest.SampleRate = defaultSampleRate
	}
	if c.Ingest.Channels <= 0 {
		c.Ingest.Channels = defaultChannels
	}
	if c.Ingest.DownloadTimeout <= 0 {
		c.Ingest.DownloadTimeout = defaultDownloadTimeout
	}
	if c.Ingest.DecodeTimeout <= 0 {
		c.Ingest.DecodeTimeout = defaultDecodeTimeout
	}
}

func (c *Config) normalizeTranscription() {
	if c.Transcription.Timeout <= 0 {
		c.Transcription.Timeout = defaultTranscribeTimeout
	}
	if strings.TrimSpace(c.Transcription.BasicPitchBinary) == "" {
		c.Transcription.BasicPitchBinary = defaultBasicPitchBinary
	}
}

func (c *Config) normalizeConversion() {
	c.Conversion.QuantizeResolution = strings.TrimSpace(c.Conversion.QuantizeResolution)
	if c.Conversion.QuantizeResolution == "" {
		c.Conversion.QuantizeResolution = defaultQuantizeResolution
	}
	if c.Conversion.DefaultTempoBPM <= 0 {
		c.Conversion.DefaultTempoBPM = defaultTempoBPM
	}
	if c.Conversion.Timeout <= 0 {
		c.Conversion.Timeout = defaultConvertTimeout
	}
}

func (c *Config) normalizeRefinement() {
	if c.Refinement.APIKey == "" {
		if value, ok := os.LookupEnv("CLEF_LLM_API_KEY"); ok {
			c.Refinement.APIKey = value
		}
	}
	c.Refinement.Style = strings.ToLower(strings.TrimSpace(c.Refinement.Style))
	if c.Refinement.Style == "" {
		c.Refinement.Style = defaultRefinementStyle
	}
	c.Refinement.BaseURL = strings.TrimSpace(c.Refinement.BaseURL)
	if c.Refinement.BaseURL == "" {
		c.Refinement.BaseURL = defaultLLMBaseURL
	}
	c.Refinement.Model = strings.TrimSpace(c.Refinement.Model)
	if c.Refinement.Model == "" {
		c.Refinement.Model = defaultLLMModel
	}
	if c.Refinement.TimeoutSeconds <= 0 {
		c.Refinement.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeExport() {
	c.Export.MuseScoreBinary = strings.TrimSpace(c.Export.MuseScoreBinary)
	if c.Export.RenderTimeout <= 0 {
		c.Export.RenderTimeout = defaultRenderTimeout
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.StageRetryLimit < 0 {
		c.Workflow.StageRetryLimit = defaultStageRetryLimit
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeWatch() {
	if c.Watch.SettleSeconds <= 0 {
		c.Watch.SettleSeconds = defaultWatchSettleSeconds
	}
}
