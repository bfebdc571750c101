package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clef/internal/config"
)

func TestLoadDefaultsExpandPathsAndReadEnvKey(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("CLEF_LLM_API_KEY", "env-key")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStaging := filepath.Join(tempHome, ".local", "share", "clef", "staging")
	if cfg.Paths.StagingDir != wantStaging {
		t.Fatalf("unexpected staging dir: got %q want %q", cfg.Paths.StagingDir, wantStaging)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempHome, "clef", "output") {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
	if cfg.Refinement.Enabled {
		t.Fatal("expected refinement disabled by default")
	}
	if cfg.Refinement.APIKey != "env-key" {
		t.Fatalf("expected LLM key from env, got %q", cfg.Refinement.APIKey)
	}
	if cfg.Ingest.SampleRate != 44100 || cfg.Ingest.Channels != 1 {
		t.Fatalf("unexpected ingest defaults: %+v", cfg.Ingest)
	}
	if num, den := cfg.QuantizeUnit(); num != 1 || den != 4 {
		t.Fatalf("unexpected quantize unit: %d/%d", num, den)
	}
	if cfg.Conversion.DefaultTempoBPM != 120 {
		t.Fatalf("unexpected default tempo: %d", cfg.Conversion.DefaultTempoBPM)
	}
	if cfg.Paths.ServerBind != "127.0.0.1:7519" {
		t.Fatalf("unexpected server bind: %q", cfg.Paths.ServerBind)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[conversion]\nquantise = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, _, err := config.Load(path)
	if err == nil {
		t.Fatal("expected unknown key error")
	}
	if !strings.Contains(err.Error(), "unknown keys") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRejectsBadResolution(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[conversion]\nquantize_resolution = \"whole\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "quantize_resolution") {
		t.Fatalf("expected resolution error, got %v", err)
	}
}

func TestValidateRefinementRequiresKeyAndStyle(t *testing.T) {
	t.Setenv("CLEF_LLM_API_KEY", "")
	cfg := config.Default()
	cfg.Refinement.Enabled = true
	cfg.Refinement.APIKey = ""
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "refinement.api_key") {
		t.Fatalf("expected api key error, got %v", err)
	}

	cfg.Refinement.APIKey = "key"
	cfg.Refinement.Style = "orchestral"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "refinement.style") {
		t.Fatalf("expected style error, got %v", err)
	}
}

func TestValidateWatchRequiresDirectory(t *testing.T) {
	cfg := config.Default()
	cfg.Watch.Enabled = true
	cfg.Paths.WatchDir = ""
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "watch_dir") {
		t.Fatalf("expected watch_dir error, got %v", err)
	}
}
