package deps_test

import (
	"os"
	"path/filepath"
	"testing"

	"clef/internal/deps"
	"clef/internal/testsupport"
)

func stubBinary(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}

func TestCheckBinaries(t *testing.T) {
	dir := t.TempDir()
	stubBinary(t, dir, "present")
	t.Setenv("PATH", dir)

	statuses := deps.CheckBinaries([]deps.Requirement{
		{Name: "Present", Command: "present", Description: " trimmed "},
		{Name: "Missing", Command: "absent"},
		{Name: "Unconfigured", Command: "  "},
	})
	if len(statuses) != 3 {
		t.Fatalf("got %d statuses, want 3", len(statuses))
	}
	if !statuses[0].Available {
		t.Errorf("present binary reported unavailable: %s", statuses[0].Detail)
	}
	if statuses[0].Description != "trimmed" {
		t.Errorf("description not trimmed: %q", statuses[0].Description)
	}
	if statuses[1].Available || statuses[1].Detail == "" {
		t.Errorf("missing binary = %+v, want unavailable with detail", statuses[1])
	}
	if statuses[2].Available || statuses[2].Detail != "command not configured" {
		t.Errorf("unconfigured binary = %+v", statuses[2])
	}
}

func TestRequirementsMuseScoreOptional(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Export.GeneratePDF = false

	found := false
	for _, req := range deps.Requirements(cfg) {
		if req.Name == "MuseScore" {
			found = true
			if !req.Optional {
				t.Error("MuseScore required while PDF generation disabled")
			}
		}
	}
	if !found {
		t.Fatal("MuseScore requirement missing")
	}

	cfg.Export.GeneratePDF = true
	for _, req := range deps.Requirements(cfg) {
		if req.Name == "MuseScore" && req.Optional {
			t.Error("MuseScore optional while PDF generation enabled")
		}
	}
}

func TestMissingRequired(t *testing.T) {
	statuses := []deps.Status{
		{Name: "FFmpeg", Available: false},
		{Name: "yt-dlp", Available: false, Optional: true},
		{Name: "basic-pitch", Available: true},
	}
	missing := deps.MissingRequired(statuses)
	if len(missing) != 1 || missing[0] != "FFmpeg" {
		t.Fatalf("MissingRequired = %v, want [FFmpeg]", missing)
	}
}
