package stage_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"clef/internal/services"
	"clef/internal/stage"
)

func TestRequireArtifact(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "artifact.wav")
	if err := os.WriteFile(good, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.wav")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := stage.RequireArtifact("transcribe", good); err != nil {
		t.Fatalf("valid artifact rejected: %v", err)
	}
	for _, path := range []string{"", filepath.Join(dir, "missing.wav"), empty, dir} {
		err := stage.RequireArtifact("transcribe", path)
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("path %q: expected validation error, got %v", path, err)
		}
		if services.Stage(err) != "transcribe" {
			t.Fatalf("path %q: stage not carried on error", path)
		}
	}
}

func TestVerifyProduced(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.mid")
	if err := os.WriteFile(out, []byte("MThd"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := stage.VerifyProduced(services.ErrTranscription, "transcribe", out); err != nil {
		t.Fatalf("valid output rejected: %v", err)
	}
	err := stage.VerifyProduced(services.ErrTranscription, "transcribe", filepath.Join(dir, "gone.mid"))
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected transcription marker, got %v", err)
	}
}

func TestHealthConstructors(t *testing.T) {
	h := stage.Healthy("convert")
	if !h.Ready || h.Name != "convert" {
		t.Fatalf("unexpected health: %+v", h)
	}
	u := stage.Unhealthy("export", "musescore missing")
	if u.Ready || u.Detail == "" {
		t.Fatalf("unexpected health: %+v", u)
	}
}
