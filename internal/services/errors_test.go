package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"clef/internal/services"
)

func TestWrapMatchesMarkerAndCause(t *testing.T) {
	cause := errors.New("ffmpeg exited with status 1")
	err := services.Wrap(services.ErrIngest, "ingest", "decode", "normalizing audio", cause)

	if !errors.Is(err, services.ErrIngest) {
		t.Fatal("expected errors.Is to match the ingest marker")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to match the wrapped cause")
	}
	if errors.Is(err, services.ErrConversion) {
		t.Fatal("unexpected match against an unrelated marker")
	}
	if got := services.Stage(err); got != "ingest" {
		t.Fatalf("Stage(err) = %q, want %q", got, "ingest")
	}
	if msg := err.Error(); !strings.Contains(msg, "decode") || !strings.Contains(msg, "ffmpeg") {
		t.Fatalf("unexpected error text: %s", msg)
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := services.Wrap(services.ErrValidation, "convert", "normalize", "no events after filtering", nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatal("expected validation marker to match")
	}
	if services.Message(err) == "" {
		t.Fatal("expected a non-empty message")
	}
}

func TestTransient(t *testing.T) {
	transient := services.Wrap(services.ErrTransient, "refine", "request", "rate limited", nil)
	timeout := services.Wrap(services.ErrTimeout, "export", "render", "musescore stalled", nil)
	permanent := services.Wrap(services.ErrConversion, "convert", "quantize", "malformed event", nil)

	if !services.Transient(transient) {
		t.Fatal("transient marker should be retryable")
	}
	if !services.Transient(timeout) {
		t.Fatal("timeout should be retryable")
	}
	if services.Transient(permanent) {
		t.Fatal("conversion failures must not be retried")
	}
}

func TestMarkerFor(t *testing.T) {
	cases := map[string]error{
		"ingest":     services.ErrIngest,
		"Transcribe": services.ErrTranscription,
		"convert":    services.ErrConversion,
		"refine":     services.ErrRefinement,
		"export":     services.ErrRender,
		"unknown":    services.ErrTransient,
	}
	for stage, want := range cases {
		if got := services.MarkerFor(stage); got != want {
			t.Fatalf("MarkerFor(%q) = %v, want %v", stage, got, want)
		}
	}
}

func TestContextCarriage(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithProjectID(ctx, "proj-123")
	ctx = services.WithStage(ctx, "transcribe")
	ctx = services.WithRequestID(ctx, "req-9")

	if id, ok := services.ProjectIDFromContext(ctx); !ok || id != "proj-123" {
		t.Fatalf("project id = %q, %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "transcribe" {
		t.Fatalf("stage = %q, %v", stage, ok)
	}
	if id, ok := services.RequestIDFromContext(ctx); !ok || id != "req-9" {
		t.Fatalf("request id = %q, %v", id, ok)
	}
	if _, ok := services.ProjectIDFromContext(context.Background()); ok {
		t.Fatal("empty context should not report a project id")
	}
}
