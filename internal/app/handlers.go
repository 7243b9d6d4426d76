package app

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"taskscheduler-go/internal/scheduler"
	"taskscheduler-go/internal/storage"
)

// taskSummary is the list-view shape: retired tasks stay visible, flagged
// by status.
type taskSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	DeletedAt string `json:"deleted_at,omitempty"`
}

func (a *Application) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req scheduler.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	id, err := a.Service.CreateTask(r.Context(), req)
	if err != nil {
		if errors.Is(err, scheduler.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.Log.Errorw("create task failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "created",
		"id":     id,
	})
}

func (a *Application) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		// a malformed id cannot name any task
		writeError(w, http.StatusNotFound, "Resource Not Found")
		return
	}

	if err := a.Service.DeleteTask(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Resource Not Found")
			return
		}
		a.Log.Errorw("delete task failed", "task_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *Application) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := a.Storage.ListTasks(r.Context())
	if err != nil {
		a.Log.Errorw("list tasks failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	summaries := make([]taskSummary, 0, len(tasks))
	for _, task := range tasks {
		summary := taskSummary{ID: task.ID, Name: task.Name, Status: "active"}
		if task.Retired() {
			summary.Status = "deleted"
			summary.DeletedAt = task.DeletedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		}
		summaries = append(summaries, summary)
	}

	writeJSON(w, http.StatusOK, summaries)
}

func (a *Application) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusNotFound, "Resource Not Found")
		return
	}

	if _, err := a.Storage.GetTask(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Resource Not Found")
			return
		}
		a.Log.Errorw("get task failed", "task_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	execs, err := a.Storage.ListExecutions(r.Context(), id)
	if err != nil {
		a.Log.Errorw("list executions failed", "task_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if execs == nil {
		execs = []*storage.Execution{}
	}

	writeJSON(w, http.StatusOK, execs)
}

func (a *Application) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.Storage.DB().PingContext(r.Context()); err != nil {
		a.Log.Errorw("health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}

	version, dirty, err := a.Storage.MigrationVersion()
	if err != nil {
		a.Log.Errorw("health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "schema version unreadable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"schema_version": version,
		"schema_dirty":   dirty,
	})
}

func (a *Application) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.Storage.GetStats(r.Context())
	if err != nil {
		a.Log.Errorw("stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
