package ytdlp

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestNewCLIWithBinary(t *testing.T) {
	cli := NewCLI(WithBinary("/opt/yt-dlp"))
	if cli.binary != "/opt/yt-dlp" {
		t.Fatalf("binary override not applied: %q", cli.binary)
	}
}

func TestCLIDownloadRequiresInputs(t *testing.T) {
	cli := NewCLI()
	if _, err := cli.Download(context.Background(), "", "/tmp"); err == nil {
		t.Fatal("expected error when url is empty")
	}
	if _, err := cli.Download(context.Background(), "https://example.com/v", ""); err == nil {
		t.Fatal("expected error when output directory is empty")
	}
}

func TestCLIDownloadSuccess(t *testing.T) {
	var capturedArgs []string
	setHelperCommand(t, "success", &capturedArgs)

	tempDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tempDir, "source.wav"), []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}

	cli := NewCLI()
	path, err := cli.Download(context.Background(), "https://example.com/v", tempDir)
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if path != filepath.Join(tempDir, "source.wav") {
		t.Fatalf("path = %q", path)
	}
	if findArg(capturedArgs, "--no-playlist") == -1 {
		t.Fatalf("expected --no-playlist in args %v", capturedArgs)
	}
	if idx := findArg(capturedArgs, "--audio-format"); idx == -1 || capturedArgs[idx+1] != "wav" {
		t.Fatalf("expected wav audio format in args %v", capturedArgs)
	}
}

func TestCLIDownloadMissingFile(t *testing.T) {
	setHelperCommand(t, "success", nil)

	cli := NewCLI()
	if _, err := cli.Download(context.Background(), "https://example.com/v", t.TempDir()); err == nil {
		t.Fatal("expected error when the downloaded file is missing")
	}
}

func TestCLIDownloadFailure(t *testing.T) {
	setHelperCommand(t, "failure", nil)

	cli := NewCLI()
	if _, err := cli.Download(context.Background(), "https://example.com/v", t.TempDir()); err == nil {
		t.Fatal("expected download failure error")
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
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "YTDLP_HELPER_MODE="+mode)
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

	switch os.Getenv("YTDLP_HELPER_MODE") {
	case "failure":
		fmt.Fprintln(os.Stderr, "ERROR: unable to download video data")
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
