package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/taskflow-app/taskflow/services"
)

// TaskHandler exposes task CRUD over HTTP. All mutation endpoints delegate
// to the TaskService, which owns the persist-record-broadcast sequence.
type TaskHandler struct {
	tasks    *services.TaskService
	validate *validator.Validate
}

func NewTaskHandler(tasks *services.TaskService) *TaskHandler {
	return &TaskHandler{
		tasks:    tasks,
		validate: validator.New(),
	}
}

type taskRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	DueDate     string `json:"dueDate" validate:"required"`
	Status      string `json:"status"`
	AssignedTo  string `json:"assignedTo"`
	Priority    string `json:"priority"`
	// Version pins an optimistic-concurrency check on update; 0 checks
	// against the state read during the update itself.
	Version int64 `json:"version"`
	// UserName is an untrusted display hint. The actor is always the
	// authenticated session user.
	UserName string `json:"userName"`
}

func (r taskRequest) input() services.TaskInput {
	return services.TaskInput{
		Title:       r.Title,
		Description: r.Description,
		DueDate:     r.DueDate,
		Status:      r.Status,
		AssignedTo:  r.AssignedTo,
		Priority:    r.Priority,
	}
}

// Create handles POST /api/tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		respondMessage(w, http.StatusUnauthorized, "Access token missing")
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondMessage(w, http.StatusBadRequest, "Title, description, and dueDate are required")
		return
	}

	actor := services.Actor{ID: claims.UserID, NameHint: req.UserName}
	task, err := h.tasks.Create(r.Context(), actor, req.input())
	if err != nil {
		respondServiceError(w, err, "Task not found")
		return
	}
	respondJSON(w, http.StatusCreated, task)
}

// List handles GET /api/tasks.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.List(r.Context())
	if err != nil {
		respondServiceError(w, err, "Task not found")
		return
	}
	respondJSON(w, http.StatusOK, tasks)
}

// Update handles PUT /api/tasks/{id}.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		respondMessage(w, http.StatusUnauthorized, "Access token missing")
		return
	}
	id := mux.Vars(r)["id"]

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondMessage(w, http.StatusBadRequest, "Title, description, and dueDate are required")
		return
	}

	actor := services.Actor{ID: claims.UserID, NameHint: req.UserName}
	task, err := h.tasks.Update(r.Context(), actor, id, req.input(), req.Version)
	if err != nil {
		respondServiceError(w, err, "Task not found")
		return
	}
	respondJSON(w, http.StatusOK, task)
}

// Delete handles DELETE /api/tasks/{id}. The body is optional and only
// carries a display hint.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		respondMessage(w, http.StatusUnauthorized, "Access token missing")
		return
	}
	id := mux.Vars(r)["id"]

	var req struct {
		UserName string `json:"userName"`
	}
	// A missing or malformed body is fine here.
	_ = json.NewDecoder(r.Body).Decode(&req)

	actor := services.Actor{ID: claims.UserID, NameHint: req.UserName}
	if err := h.tasks.Delete(r.Context(), actor, id); err != nil {
		respondServiceError(w, err, "Task not found")
		return
	}
	respondMessage(w, http.StatusOK, "Task deleted successfully")
}
