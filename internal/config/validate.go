package config

import (
	"errors"
	"fmt"
	"strings"
)

var knownRefinementStyles = map[string]struct{}{
	"piano":   {},
	"guitar":  {},
	"vocal":   {},
	"general": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateConversion(); err != nil {
		return err
	}
	if err := c.validateRefinement(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.Channels != 1 && c.Ingest.Channels != 2 {
		return fmt.Errorf("ingest.channels must be 1 or 2, got %d", c.Ingest.Channels)
	}
	if c.Ingest.SampleRate < 8000 || c.Ingest.SampleRate > 192000 {
		return fmt.Errorf("ingest.sample_rate %d out of range [8000, 192000]", c.Ingest.SampleRate)
	}
	return nil
}

func (c *Config) validateTranscription() error {
	if c.Transcription.OnsetThreshold < 0 || c.Transcription.OnsetThreshold > 1 {
		return errors.New("transcription.onset_threshold must be between 0 and 1")
	}
	if c.Transcription.FrameThreshold < 0 || c.Transcription.FrameThreshold > 1 {
		return errors.New("transcription.frame_threshold must be between 0 and 1")
	}
	if c.Transcription.MinNoteSeconds < 0 {
		return errors.New("transcription.min_note_seconds must not be negative")
	}
	if c.Transcription.MinFrequencyHz < 0 || c.Transcription.MaxFrequencyHz < 0 {
		return errors.New("transcription frequency bounds must not be negative")
	}
	if c.Transcription.MaxFrequencyHz > 0 && c.Transcription.MinFrequencyHz >= c.Transcription.MaxFrequencyHz {
		return errors.New("transcription.min_frequency_hz must be below max_frequency_hz")
	}
	return nil
}

func (c *Config) validateConversion() error {
	if _, _, err := parseResolution(c.Conversion.QuantizeResolution); err != nil {
		return fmt.Errorf("conversion.quantize_resolution: %w", err)
	}
	if c.Conversion.DefaultTempoBPM < 20 || c.Conversion.DefaultTempoBPM > 400 {
		return fmt.Errorf("conversion.default_tempo_bpm %d out of range [20, 400]", c.Conversion.DefaultTempoBPM)
	}
	return nil
}

func (c *Config) validateRefinement() error {
	if !c.Refinement.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Refinement.APIKey) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/clef/config.toml"
		}
		return fmt.Errorf("refinement.api_key is required when refinement is enabled. Set CLEF_LLM_API_KEY env var or edit %s (create with 'clef config init')", defaultPath)
	}
	if _, ok := knownRefinementStyles[c.Refinement.Style]; !ok {
		return fmt.Errorf("refinement.style %q is not one of piano, guitar, vocal, general", c.Refinement.Style)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn, or error", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateWatch() error {
	if !c.Watch.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Paths.WatchDir) == "" {
		return errors.New("paths.watch_dir must be set when watch.enabled is true")
	}
	return nil
}
