package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var commandContext = exec.CommandContext

// Client defines URL-based media extraction behaviour.
type Client interface {
	Download(ctx context.Context, url, outputDir string) (string, error)
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

// CLI wraps the yt-dlp command-line downloader.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "yt-dlp"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Download extracts the best audio track from url into outputDir as WAV
// and returns the downloaded file's path.
func (c *CLI) Download(ctx context.Context, url, outputDir string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", errors.New("url required")
	}
	if outputDir == "" {
		return "", errors.New("output directory required")
	}

	outputPath := filepath.Join(outputDir, "source.wav")
	args := []string{
		"--no-playlist",
		"--extract-audio",
		"--audio-format", "wav",
		"--output", filepath.Join(outputDir, "source.%(ext)s"),
		url,
	}
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("yt-dlp failed: %w: %s", err, lastLine(output.String()))
	}
	if _, err := os.Stat(outputPath); err != nil {
		return "", fmt.Errorf("yt-dlp reported success but %s is missing: %w", outputPath, err)
	}
	return outputPath, nil
}

func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}

var _ Client = (*CLI)(nil)
