package basicpitch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// Options tunes the transcription model's note detection.
type Options struct {
	OnsetThreshold float64
	FrameThreshold float64
	MinNoteSeconds float64
	MinFrequencyHz float64
	MaxFrequencyHz float64
}

// Client defines pitch-transcription behaviour.
type Client interface {
	Transcribe(ctx context.Context, audioPath, outputDir string, opts Options) (string, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the basic-pitch command-line transcriber.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "basic-pitch"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Transcribe runs the model over audioPath and returns the path of the
// MIDI file it wrote under outputDir.
func (c *CLI) Transcribe(ctx context.Context, audioPath, outputDir string, opts Options) (string, error) {
	if audioPath == "" {
		return "", errors.New("audio path required")
	}
	if outputDir == "" {
		return "", errors.New("output directory required")
	}

	args := []string{outputDir, audioPath, "--save-midi"}
	if opts.OnsetThreshold > 0 {
		args = append(args, "--onset-threshold", formatFloat(opts.OnsetThreshold))
	}
	if opts.FrameThreshold > 0 {
		args = append(args, "--frame-threshold", formatFloat(opts.FrameThreshold))
	}
	if opts.MinNoteSeconds > 0 {
		// basic-pitch takes the minimum note length in milliseconds.
		args = append(args, "--minimum-note-length", formatFloat(opts.MinNoteSeconds*1000))
	}
	if opts.MinFrequencyHz > 0 {
		args = append(args, "--minimum-frequency", formatFloat(opts.MinFrequencyHz))
	}
	if opts.MaxFrequencyHz > 0 {
		args = append(args, "--maximum-frequency", formatFloat(opts.MaxFrequencyHz))
	}

	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("basic-pitch failed: %w: %s", err, lastLine(output.String()))
	}

	midiPath := midiOutputPath(audioPath, outputDir)
	if _, err := os.Stat(midiPath); err != nil {
		return "", fmt.Errorf("basic-pitch reported success but %s is missing: %w", midiPath, err)
	}
	return midiPath, nil
}

// midiOutputPath mirrors basic-pitch's naming: <stem>_basic_pitch.mid.
func midiOutputPath(audioPath, outputDir string) string {
	base := filepath.Base(audioPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, stem+"_basic_pitch.mid")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}

var _ Client = (*CLI)(nil)
