package musescore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

var (
	commandContext = exec.CommandContext
	lookPath       = exec.LookPath
)

// candidateBinaries lists MuseScore executable names across versions and
// packagings, newest first.
var candidateBinaries = []string{"mscore", "musescore", "mscore4", "musescore4", "mscore3", "musescore3"}

// ErrNotInstalled reports that no MuseScore binary could be found.
var ErrNotInstalled = errors.New("musescore binary not found")

// Client defines notation rendering behaviour.
type Client interface {
	Render(ctx context.Context, scorePath, outputPath string) error
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides binary autodiscovery.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the MuseScore command-line renderer.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client. Without WithBinary the binary is
// discovered on PATH at first use.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Binary returns the configured or discovered MuseScore executable.
func (c *CLI) Binary() (string, error) {
	if c.binary != "" {
		return c.binary, nil
	}
	for _, candidate := range candidateBinaries {
		if path, err := lookPath(candidate); err == nil {
			c.binary = path
			return path, nil
		}
	}
	return "", ErrNotInstalled
}

// Render converts scorePath to the format implied by outputPath's
// extension, typically PDF.
func (c *CLI) Render(ctx context.Context, scorePath, outputPath string) error {
	if scorePath == "" {
		return errors.New("score path required")
	}
	if outputPath == "" {
		return errors.New("output path required")
	}
	binary, err := c.Binary()
	if err != nil {
		return err
	}

	cmd := commandContext(ctx, binary, "-o", outputPath, scorePath) //nolint:gosec
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("musescore render failed: %w: %s", err, lastLine(output.String()))
	}
	if _, err := os.Stat(outputPath); err != nil {
		return fmt.Errorf("musescore reported success but %s is missing: %w", outputPath, err)
	}
	return nil
}

func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}

var _ Client = (*CLI)(nil)
