package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	OutputDir  string `toml:"output_dir"`
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
	WatchDir   string `toml:"watch_dir"`
	ServerBind string `toml:"server_bind"`
}

// Ingest contains configuration for audio download and decoding.
type Ingest struct {
	SampleRate      int `toml:"sample_rate"`
	Channels        int `toml:"channels"`
	DownloadTimeout int `toml:"download_timeout"`
	DecodeTimeout   int `toml:"decode_timeout"`
}

// Transcription contains configuration for the pitch transcription model.
type Transcription struct {
	OnsetThreshold   float64 `toml:"onset_threshold"`
	FrameThreshold   float64 `toml:"frame_threshold"`
	MinNoteSeconds   float64 `toml:"min_note_seconds"`
	MinFrequencyHz   float64 `toml:"min_frequency_hz"`
	MaxFrequencyHz   float64 `toml:"max_frequency_hz"`
	Timeout          int     `toml:"timeout"`
	BasicPitchBinary string  `toml:"basic_pitch_binary"`
}

// Conversion contains configuration for note-stream normalization.
type Conversion struct {
	Quantize             bool   `toml:"quantize"`
	QuantizeResolution   string `toml:"quantize_resolution"`
	RemoveRedundantRests bool   `toml:"remove_redundant_rests"`
	ResolveOverlaps      bool   `toml:"resolve_overlaps"`
	InferKey             bool   `toml:"infer_key"`
	InferMeter           bool   `toml:"infer_meter"`
	InsertDefaultTempo   bool   `toml:"insert_default_tempo"`
	DefaultTempoBPM      int    `toml:"default_tempo_bpm"`
	Timeout              int    `toml:"timeout"`
}

// Refinement contains configuration for LLM-based notation refinement.
type Refinement struct {
	Enabled        bool   `toml:"enabled"`
	Style          string `toml:"style"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Export contains configuration for bundle assembly and PDF rendering.
type Export struct {
	GeneratePDF     bool   `toml:"generate_pdf"`
	MuseScoreBinary string `toml:"musescore_binary"`
	RenderTimeout   int    `toml:"render_timeout"`
}

// Workflow contains configuration for queue draining and stage retries.
type Workflow struct {
	QueuePollInterval int `toml:"queue_poll_interval"`
	StageRetryLimit   int `toml:"stage_retry_limit"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Conversions    bool   `toml:"conversions"`
	Queue          bool   `toml:"queue"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Watch contains configuration for the drop-directory monitor.
type Watch struct {
	Enabled       bool `toml:"enabled"`
	SettleSeconds int  `toml:"settle_seconds"`
}

// Config encapsulates all configuration values for clef.
//
// Configuration sections by subsystem:
//   - Paths: output/staging/log directories, watch dir, server bind
//   - Ingest: download and decode settings for source audio
//   - Transcription: basic-pitch model thresholds and timeout
//   - Conversion: note-stream normalization toggles
//   - Refinement: LLM connection settings and default style
//   - Export: PDF rendering via MuseScore
//   - Workflow: queue drain interval and stage retry bound
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
//   - Watch: drop-directory monitor settings
type Config struct {
	Paths         Paths         `toml:"paths"`
	Ingest        Ingest        `toml:"ingest"`
	Transcription Transcription `toml:"transcription"`
	Conversion    Conversion    `toml:"conversion"`
	Refinement    Refinement    `toml:"refinement"`
	Export        Export        `toml:"export"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
	Watch         Watch         `toml:"watch"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/clef/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. Unknown keys are rejected.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: unknown keys:\n%s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("clef.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a conversion run writes into.
// The watch directory is created on a best-effort basis so runs still work
// when watching is disabled.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.StagingDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.WatchDir) != "" {
		_ = os.MkdirAll(c.Paths.WatchDir, 0o755)
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for audio decoding.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for audio metadata.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// YtdlpBinary returns the yt-dlp executable name used for URL ingest.
func (c *Config) YtdlpBinary() string {
	return "yt-dlp"
}

// QuantizeUnit returns the quantization resolution as a num/den fraction of
// a quarter note. Validate guarantees the stored string parses.
func (c *Config) QuantizeUnit() (int64, int64) {
	num, den, err := parseResolution(c.Conversion.QuantizeResolution)
	if err != nil {
		return 1, 4
	}
	return num, den
}

func parseResolution(value string) (int64, int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 1, 4, nil
	}
	var num, den int64
	if _, err := fmt.Sscanf(value, "%d/%d", &num, &den); err != nil {
		return 0, 0, fmt.Errorf("resolution %q: expected N/D", value)
	}
	if num <= 0 || den <= 0 {
		return 0, 0, fmt.Errorf("resolution %q: numerator and denominator must be positive", value)
	}
	return num, den, nil
}

// WriteSample writes the embedded sample configuration to the given path.
func WriteSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

// ExpandPath resolves ~ and relative segments to an absolute path.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
