package preflight_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"clef/internal/preflight"
	"clef/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()

	result := preflight.CheckDirectoryAccess("Staging directory", dir)
	if !result.Passed {
		t.Fatalf("writable directory failed check: %s", result.Detail)
	}

	result = preflight.CheckDirectoryAccess("Staging directory", filepath.Join(dir, "missing"))
	if result.Passed {
		t.Fatal("missing directory passed check")
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	result = preflight.CheckDirectoryAccess("Staging directory", file)
	if result.Passed {
		t.Fatal("regular file passed directory check")
	}
}

func TestRunAllReportsDirectories(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	results := preflight.RunAll(context.Background(), cfg)
	if len(results) == 0 {
		t.Fatal("no preflight results")
	}
	if failed := preflight.Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAllFlagsMissingBinaries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	// Empty PATH so every binary lookup fails.
	t.Setenv("PATH", t.TempDir())

	results := preflight.RunAll(context.Background(), cfg)
	failed := preflight.Failed(results)
	if len(failed) == 0 {
		t.Fatal("expected failures with empty PATH")
	}
	names := map[string]bool{}
	for _, result := range failed {
		names[result.Name] = true
	}
	for _, want := range []string{"FFmpeg", "FFprobe", "basic-pitch"} {
		if !names[want] {
			t.Errorf("expected %s to fail, failures: %v", want, names)
		}
	}
}

func TestCheckLLMRequiresKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Refinement.Enabled = true
	cfg.Refinement.APIKey = ""

	result := preflight.CheckLLM(context.Background(), "Refinement LLM", cfg)
	if result.Passed {
		t.Fatal("LLM check passed without API key")
	}
	if result.Detail != "API key missing" {
		t.Errorf("detail = %q", result.Detail)
	}
}
