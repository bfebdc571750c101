package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"clef/internal/queue"
)

type itemView struct {
	ID           int64      `json:"id"`
	ProjectID    string     `json:"project_id"`
	Source       string     `json:"source"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	NotationPath string     `json:"notation_path,omitempty"`
	PDFPath      string     `json:"pdf_path,omitempty"`
	MetadataPath string     `json:"metadata_path,omitempty"`
	QualityScore float64    `json:"quality_score"`
	Refined      bool       `json:"refined"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

func viewForItem(item *queue.Item) itemView {
	return itemView{
		ID:           item.ID,
		ProjectID:    item.ProjectID,
		Source:       item.Source,
		Status:       string(item.Status),
		ErrorMessage: item.ErrorMessage,
		NotationPath: item.NotationPath,
		PDFPath:      item.PDFPath,
		MetadataPath: item.MetadataPath,
		QualityScore: item.QualityScore,
		Refined:      item.Refined,
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
		StartedAt:    item.StartedAt,
		CompletedAt:  item.CompletedAt,
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	health, err := s.store.Health(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "queue unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"total":      health.Total,
		"pending":    health.Pending,
		"processing": health.Processing,
		"failed":     health.Failed,
		"completed":  health.Completed,
	})
}

func (s *Server) handleQueueList(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status, ok := queue.ParseStatus(part)
			if !ok {
				writeError(w, http.StatusBadRequest, "unknown status "+strings.TrimSpace(part))
				return
			}
			statuses = append(statuses, status)
		}
	}

	items, err := s.store.List(r.Context(), statuses...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "queue unavailable")
		return
	}
	views := make([]itemView, 0, len(items))
	for _, item := range items {
		views = append(views, viewForItem(item))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": views})
}

// handleQueueItem resolves by numeric id first, then by project id.
func (s *Server) handleQueueItem(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "id")

	var item *queue.Item
	var err error
	if id, parseErr := strconv.ParseInt(key, 10, 64); parseErr == nil {
		item, err = s.store.GetByID(r.Context(), id)
	} else {
		item, err = s.store.GetByProjectID(r.Context(), key)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "queue unavailable")
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, viewForItem(item))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
