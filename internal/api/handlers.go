package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bobarin/reelforge/internal/store"
)

// Handler serves the ambient admin surface: liveness and read-only task
// status lookups backed by the task store. It does not own task creation or
// scheduling — that is the task-runner's job per the command-line entry.
type Handler struct {
	store *store.Store
}

func NewHandler(st *store.Store) *Handler {
	return &Handler{store: st}
}

// Health reports process liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetTaskStatus handles GET /v1/tasks/{id}, returning the task's current
// lifecycle state, result, and error, if any.
func (h *Handler) GetTaskStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "task id is required")
		return
	}

	t, err := h.store.GetTask(r.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			respondError(w, http.StatusNotFound, "task not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load task")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":          t.ID,
		"status":      t.Status,
		"result":      t.Result,
		"error":       t.Error,
		"started_at":  t.StartedAt,
		"finished_at": t.FinishedAt,
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
