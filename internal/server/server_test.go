package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"clef/internal/queue"
	"clef/internal/server"
	"clef/internal/testsupport"
)

func newTestServer(t *testing.T) (*server.Server, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	srv, err := server.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return srv, store
}

func TestHealthz(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()
	if _, err := store.NewProject(ctx, "proj-1", "/music/a.wav", ""); err != nil {
		t.Fatalf("NewProject failed: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf(`status field = %v, want "ok"`, body["status"])
	}
	if body["pending"].(float64) != 1 {
		t.Errorf("pending = %v, want 1", body["pending"])
	}
}

func TestQueueListFiltersByStatus(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	if _, err := store.NewProject(ctx, "proj-1", "/music/a.wav", ""); err != nil {
		t.Fatalf("NewProject failed: %v", err)
	}
	failed, err := store.NewProject(ctx, "proj-2", "/music/b.wav", "")
	if err != nil {
		t.Fatalf("NewProject failed: %v", err)
	}
	failed.SetFailed("decode error")
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/queue?status=failed", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Items []struct {
			ProjectID    string `json:"project_id"`
			Status       string `json:"status"`
			ErrorMessage string `json:"error_message"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Items) != 1 || body.Items[0].ProjectID != "proj-2" {
		t.Fatalf("items = %+v, want only proj-2", body.Items)
	}
	if body.Items[0].ErrorMessage != "decode error" {
		t.Errorf("error message = %q", body.Items[0].ErrorMessage)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/queue?status=bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown status code = %d, want 400", rec.Code)
	}
}

func TestQueueItemLookup(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	item, err := store.NewProject(ctx, "proj-1", "/music/a.wav", "")
	if err != nil {
		t.Fatalf("NewProject failed: %v", err)
	}

	for _, path := range []string{
		"/api/queue/proj-1",
		"/api/queue/1",
	} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s = %d, want 200", path, rec.Code)
		}
		var view struct {
			ID        int64  `json:"id"`
			ProjectID string `json:"project_id"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if view.ID != item.ID || view.ProjectID != "proj-1" {
			t.Errorf("GET %s = %+v", path, view)
		}
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/queue/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing item code = %d, want 404", rec.Code)
	}
}
