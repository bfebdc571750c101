package musescore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestBinaryDiscovery(t *testing.T) {
	original := lookPath
	lookPath = func(name string) (string, error) {
		if name == "musescore4" {
			return "/usr/bin/musescore4", nil
		}
		return "", exec.ErrNotFound
	}
	t.Cleanup(func() {
		lookPath = original
	})

	cli := NewCLI()
	binary, err := cli.Binary()
	if err != nil {
		t.Fatalf("Binary returned error: %v", err)
	}
	if binary != "/usr/bin/musescore4" {
		t.Fatalf("binary = %q", binary)
	}
}

func TestBinaryDiscoveryNotInstalled(t *testing.T) {
	original := lookPath
	lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	t.Cleanup(func() {
		lookPath = original
	})

	cli := NewCLI()
	if _, err := cli.Binary(); !errors.Is(err, ErrNotInstalled) {
		t.Fatalf("expected ErrNotInstalled, got %v", err)
	}
}

func TestRenderSuccess(t *testing.T) {
	var capturedArgs []string
	setHelperCommand(t, "success", &capturedArgs)

	tempDir := t.TempDir()
	output := filepath.Join(tempDir, "score.pdf")
	if err := os.WriteFile(output, []byte("%PDF"), 0o644); err != nil {
		t.Fatal(err)
	}

	cli := NewCLI(WithBinary("mscore"))
	if err := cli.Render(context.Background(), "/tmp/score.musicxml", output); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if idx := findArg(capturedArgs, "-o"); idx == -1 || capturedArgs[idx+1] != output {
		t.Fatalf("expected -o %s in args %v", output, capturedArgs)
	}
}

func TestRenderMissingOutput(t *testing.T) {
	setHelperCommand(t, "success", nil)

	cli := NewCLI(WithBinary("mscore"))
	output := filepath.Join(t.TempDir(), "score.pdf")
	if err := cli.Render(context.Background(), "/tmp/score.musicxml", output); err == nil {
		t.Fatal("expected error when rendered file is missing")
	}
}

func TestRenderFailure(t *testing.T) {
	setHelperCommand(t, "failure", nil)

	cli := NewCLI(WithBinary("mscore"))
	if err := cli.Render(context.Background(), "/tmp/score.musicxml", "/tmp/score.pdf"); err == nil {
		t.Fatal("expected render failure error")
	}
}

func setHelperCommand(t *testing.T, mode string, captured *[]string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if captured != nil {
			*captured = append([]string(nil), args...)
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "MUSESCORE_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("MUSESCORE_HELPER_MODE") {
	case "failure":
		fmt.Fprintln(os.Stderr, "cannot read file")
		os.Exit(1)
	default:
		os.Exit(0)
	}
}

func findArg(args []string, target string) int {
	for i, arg := range args {
		if arg == target {
			return i
		}
	}
	return -1
}
