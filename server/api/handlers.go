// Package api implements the REST handlers for the task collection and its
// view configuration.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/taskforge-io/taskforge/activity"
	"github.com/taskforge-io/taskforge/task"
)

// Handlers bundles all REST API handler dependencies.
type Handlers struct {
	Tasks   *task.Store
	Feed    activity.Feed
	Logger  *slog.Logger
	Version string
	StartAt int64 // unix timestamp of server start
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tasks", h.listTasks)
	mux.HandleFunc("POST /api/tasks", h.createTask)
	mux.HandleFunc("GET /api/tasks/view", h.viewTasks)
	mux.HandleFunc("GET /api/tasks/{id}", h.getTask)
	mux.HandleFunc("PATCH /api/tasks/{id}", h.updateTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", h.deleteTask)
	mux.HandleFunc("PUT /api/tasks/{id}/status", h.updateStatus)

	mux.HandleFunc("POST /api/tasks/{id}/comments", h.addComment)
	mux.HandleFunc("PUT /api/tasks/{id}/comments/{commentID}", h.updateComment)
	mux.HandleFunc("DELETE /api/tasks/{id}/comments/{commentID}", h.deleteComment)

	mux.HandleFunc("POST /api/tasks/{id}/time-entries", h.addTimeEntry)
	mux.HandleFunc("PATCH /api/tasks/{id}/time-entries/{entryID}", h.updateTimeEntry)
	mux.HandleFunc("DELETE /api/tasks/{id}/time-entries/{entryID}", h.deleteTimeEntry)
	mux.HandleFunc("POST /api/tasks/{id}/timer/start", h.startTimer)
	mux.HandleFunc("POST /api/tasks/{id}/timer/stop", h.stopTimer)

	mux.HandleFunc("POST /api/tasks/{id}/attachments", h.addAttachment)
	mux.HandleFunc("DELETE /api/tasks/{id}/attachments/{attachmentID}", h.deleteAttachment)

	mux.HandleFunc("POST /api/tasks/{id}/subtasks", h.addSubtask)
	mux.HandleFunc("DELETE /api/tasks/{id}/subtasks/{subtaskID}", h.removeSubtask)

	mux.HandleFunc("POST /api/tasks/{id}/dependencies/{depID}", h.addDependency)
	mux.HandleFunc("DELETE /api/tasks/{id}/dependencies/{depID}", h.removeDependency)
	mux.HandleFunc("POST /api/tasks/{id}/related/{relatedID}", h.addRelated)
	mux.HandleFunc("DELETE /api/tasks/{id}/related/{relatedID}", h.removeRelated)

	mux.HandleFunc("GET /api/filters", h.getFilters)
	mux.HandleFunc("PUT /api/filters", h.setFilters)
	mux.HandleFunc("DELETE /api/filters", h.clearFilters)
	mux.HandleFunc("GET /api/sort", h.getSort)
	mux.HandleFunc("PUT /api/sort", h.setSort)

	mux.HandleFunc("GET /api/stats", h.stats)
	mux.HandleFunc("GET /api/activity", h.listActivity)
	mux.HandleFunc("GET /api/version", h.version)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- Task handlers ---

func (h *Handlers) listTasks(w http.ResponseWriter, _ *http.Request) {
	tasks := h.Tasks.List()
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// viewTasks returns the collection through the active filter and sort
// configuration, the way the board renders it.
func (h *Handlers) viewTasks(w http.ResponseWriter, _ *http.Request) {
	tasks := h.Tasks.Filtered()
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handlers) createTask(w http.ResponseWriter, r *http.Request) {
	var t task.Task
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	created := h.Tasks.Add(t)
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handlers) getTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, ok := h.Tasks.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) updateTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var p task.Patch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !h.Tasks.Update(id, p) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	t, _ := h.Tasks.Get(id)
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) deleteTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.Tasks.Delete(id) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var body struct {
		Status task.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !h.Tasks.UpdateStatus(id, body.Status) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	t, _ := h.Tasks.Get(id)
	writeJSON(w, http.StatusOK, t)
}

// --- Comment handlers ---

func (h *Handlers) addComment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var c task.Comment
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	created := h.Tasks.AddComment(id, c)
	if created == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handlers) updateComment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	commentID := r.PathValue("commentID")
	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !h.Tasks.UpdateComment(id, commentID, body.Content) {
		writeError(w, http.StatusNotFound, "comment not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) deleteComment(w http.ResponseWriter, r *http.Request) {
	if !h.Tasks.DeleteComment(r.PathValue("id"), r.PathValue("commentID")) {
		writeError(w, http.StatusNotFound, "comment not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Time entry handlers ---

func (h *Handlers) addTimeEntry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var e task.TimeEntry
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	created := h.Tasks.AddTimeEntry(id, e)
	if created == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handlers) updateTimeEntry(w http.ResponseWriter, r *http.Request) {
	var p task.TimeEntryPatch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !h.Tasks.UpdateTimeEntry(r.PathValue("id"), r.PathValue("entryID"), p) {
		writeError(w, http.StatusNotFound, "time entry not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) deleteTimeEntry(w http.ResponseWriter, r *http.Request) {
	if !h.Tasks.DeleteTimeEntry(r.PathValue("id"), r.PathValue("entryID")) {
		writeError(w, http.StatusNotFound, "time entry not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) startTimer(w http.ResponseWriter, r *http.Request) {
	entry := h.Tasks.StartTimer(r.PathValue("id"))
	if entry == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handlers) stopTimer(w http.ResponseWriter, r *http.Request) {
	entry := h.Tasks.StopTimer(r.PathValue("id"))
	if entry == nil {
		writeError(w, http.StatusNotFound, "no running timer")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// --- Attachment handlers ---

func (h *Handlers) addAttachment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var a task.Attachment
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	created := h.Tasks.AddAttachment(id, a)
	if created == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handlers) deleteAttachment(w http.ResponseWriter, r *http.Request) {
	if !h.Tasks.DeleteAttachment(r.PathValue("id"), r.PathValue("attachmentID")) {
		writeError(w, http.StatusNotFound, "attachment not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Subtask and link handlers ---

func (h *Handlers) addSubtask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var t task.Task
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	created := h.Tasks.AddSubtask(id, t)
	if created == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handlers) removeSubtask(w http.ResponseWriter, r *http.Request) {
	if !h.Tasks.RemoveSubtask(r.PathValue("id"), r.PathValue("subtaskID")) {
		writeError(w, http.StatusNotFound, "subtask not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) addDependency(w http.ResponseWriter, r *http.Request) {
	if !h.Tasks.AddDependency(r.PathValue("id"), r.PathValue("depID")) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) removeDependency(w http.ResponseWriter, r *http.Request) {
	if !h.Tasks.RemoveDependency(r.PathValue("id"), r.PathValue("depID")) {
		writeError(w, http.StatusNotFound, "dependency not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) addRelated(w http.ResponseWriter, r *http.Request) {
	if !h.Tasks.AddRelatedTask(r.PathValue("id"), r.PathValue("relatedID")) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) removeRelated(w http.ResponseWriter, r *http.Request) {
	if !h.Tasks.RemoveRelatedTask(r.PathValue("id"), r.PathValue("relatedID")) {
		writeError(w, http.StatusNotFound, "related task not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- View configuration handlers ---

func (h *Handlers) getFilters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Tasks.Filters())
}

func (h *Handlers) setFilters(w http.ResponseWriter, r *http.Request) {
	var f task.Filter
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	h.Tasks.SetFilters(f)
	writeJSON(w, http.StatusOK, h.Tasks.Filters())
}

func (h *Handlers) clearFilters(w http.ResponseWriter, _ *http.Request) {
	h.Tasks.ClearFilters()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) getSort(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Tasks.SortConfig())
}

func (h *Handlers) setSort(w http.ResponseWriter, r *http.Request) {
	var so task.Sort
	if err := json.NewDecoder(r.Body).Decode(&so); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	h.Tasks.SetSort(so)
	writeJSON(w, http.StatusOK, h.Tasks.SortConfig())
}

// --- Reporting and status handlers ---

func (h *Handlers) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Tasks.Stats())
}

// TimeReport returns the per-day created/logged series for the trailing
// window. Days defaults to 7; the route is manager-only.
func (h *Handlers) TimeReport(w http.ResponseWriter, r *http.Request) {
	days := 7
	if d := r.URL.Query().Get("days"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}
	writeJSON(w, http.StatusOK, h.Tasks.TimeReport(days))
}

func (h *Handlers) listActivity(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	events := []*activity.Event{}
	if h.Feed != nil {
		if recent := h.Feed.Recent(r.URL.Query().Get("task_id"), limit); recent != nil {
			events = recent
		}
	}
	writeJSON(w, http.StatusOK, events)
}

// Status reports server health and collection size. Registered outside the
// auth middleware so probes need no token.
func (h *Handlers) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": h.Version,
		"uptime":  time.Now().Unix() - h.StartAt,
		"tasks":   len(h.Tasks.List()),
	})
}

func (h *Handlers) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": h.Version})
}
