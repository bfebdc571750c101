package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// Result describes the decoded audio file.
type Result struct {
	Path            string
	DurationSeconds float64
	SampleRate      int
	Channels        int
}

// Client defines audio decoding behaviour.
type Client interface {
	Decode(ctx context.Context, inputPath, outputPath string, sampleRate, channels int) (Result, error)
	Probe(ctx context.Context, path string) (float64, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinaries overrides the default ffmpeg and ffprobe binary names.
func WithBinaries(ffmpegBin, ffprobeBin string) Option {
	return func(c *CLI) {
		if ffmpegBin != "" {
			c.ffmpeg = ffmpegBin
		}
		if ffprobeBin != "" {
			c.ffprobe = ffprobeBin
		}
	}
}

// CLI wraps the ffmpeg and ffprobe command-line tools.
type CLI struct {
	ffmpeg  string
	ffprobe string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{ffmpeg: "ffmpeg", ffprobe: "ffprobe"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Decode resamples inputPath to PCM WAV at the requested rate and channel
// count, writing outputPath, and probes the result for its duration.
func (c *CLI) Decode(ctx context.Context, inputPath, outputPath string, sampleRate, channels int) (Result, error) {
	if inputPath == "" {
		return Result{}, errors.New("input path required")
	}
	if outputPath == "" {
		return Result{}, errors.New("output path required")
	}
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	if channels <= 0 {
		channels = 1
	}

	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", inputPath,
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(sampleRate),
		"-f", "wav",
		outputPath,
	}
	cmd := commandContext(ctx, c.ffmpeg, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("ffmpeg decode failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	duration, err := c.Probe(ctx, outputPath)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Path:            outputPath,
		DurationSeconds: duration,
		SampleRate:      sampleRate,
		Channels:        channels,
	}, nil
}

// Probe returns the duration of the media file in seconds.
func (c *CLI) Probe(ctx context.Context, path string) (float64, error) {
	if path == "" {
		return 0, errors.New("probe path required")
	}
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-print_format", "json",
		"-show_format",
		path,
	}
	cmd := commandContext(ctx, c.ffprobe, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("ffprobe failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	var payload struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &payload); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(payload.Format.Duration), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", payload.Format.Duration, err)
	}
	return duration, nil
}

var _ Client = (*CLI)(nil)
