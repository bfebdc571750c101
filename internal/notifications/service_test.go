package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"clef/internal/config"
	"clef/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyConversionCompleted(context.Background(), "proj-1", 0.9); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	var captured struct {
		title    string
		tags     string
		priority string
		body     string
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		captured.title = r.Header.Get("Title")
		captured.tags = r.Header.Get("Tags")
		captured.priority = r.Header.Get("Priority")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		captured.body = string(body)
		_ = r.Body.Close()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.RequestTimeout = 5
	cfg.Notifications.Conversions = true
	cfg.Notifications.Errors = true

	svc := notifications.NewService(&cfg)

	if err := svc.NotifyConversionCompleted(context.Background(), "proj-1", 0.87); err != nil {
		t.Fatalf("notification returned error: %v", err)
	}
	if captured.title != "Clef - Conversion Complete" {
		t.Fatalf("title = %q", captured.title)
	}
	if captured.body != "Score ready: proj-1 (quality 0.87)" {
		t.Fatalf("body = %q", captured.body)
	}
	if captured.tags != "clef,conversion,completed" {
		t.Fatalf("tags = %q", captured.tags)
	}
	if captured.priority != "high" {
		t.Fatalf("priority = %q", captured.priority)
	}

	if err := svc.NotifyError(context.Background(), errors.New("decode failed"), "ingest"); err != nil {
		t.Fatalf("error notification returned error: %v", err)
	}
	if captured.body != "Error in ingest: decode failed" {
		t.Fatalf("error body = %q", captured.body)
	}
}

func TestNtfyServiceHonorsCategoryToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for disabled category: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Conversions = false
	cfg.Notifications.Queue = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	ctx := context.Background()

	if err := svc.NotifyConversionStarted(ctx, "proj-1", "take.wav"); err != nil {
		t.Fatalf("disabled conversion notification errored: %v", err)
	}
	if err := svc.NotifyQueueStarted(ctx, 3); err != nil {
		t.Fatalf("disabled queue notification errored: %v", err)
	}
	if err := svc.NotifyError(ctx, errors.New("boom"), "convert"); err != nil {
		t.Fatalf("disabled error notification errored: %v", err)
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
