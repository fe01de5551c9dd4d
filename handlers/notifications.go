package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/taskflow-app/taskflow/database"
	"github.com/taskflow-app/taskflow/services"
)

// NotificationHandler exposes the activity feed.
type NotificationHandler struct {
	notifications *services.NotificationService
	users         *database.UserStore
}

func NewNotificationHandler(notifications *services.NotificationService, users *database.UserStore) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		users:         users,
	}
}

// List handles GET /api/notifications: most recent first, capped.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	notifications, err := h.notifications.List(r.Context(), limit)
	if err != nil {
		respondServiceError(w, err, "Notification not found")
		return
	}
	respondJSON(w, http.StatusOK, notifications)
}

type notificationRequest struct {
	TaskID     string `json:"taskId"`
	TaskTitle  string `json:"taskTitle"`
	Action     string `json:"action"`
	FromStatus string `json:"fromStatus"`
	ToStatus   string `json:"toStatus"`
	Message    string `json:"message"`
}

// Create handles POST /api/notifications: a manually recorded activity.
// The actor is always the session user.
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		respondMessage(w, http.StatusUnauthorized, "Access token missing")
		return
	}

	var req notificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	userName := "Unknown User"
	if user, err := h.users.GetByID(r.Context(), claims.UserID); err == nil {
		userName = user.Name
	} else if err != database.ErrNotFound {
		logrus.WithError(err).Error("failed to resolve user")
		respondMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	n := &database.Notification{
		UserID:     claims.UserID,
		UserName:   userName,
		TaskID:     req.TaskID,
		TaskTitle:  req.TaskTitle,
		Action:     req.Action,
		FromStatus: req.FromStatus,
		ToStatus:   req.ToStatus,
		Message:    req.Message,
	}
	if err := h.notifications.Record(r.Context(), nil, n); err != nil {
		respondServiceError(w, err, "Notification not found")
		return
	}
	respondJSON(w, http.StatusCreated, n)
}

// MarkRead handles PUT /api/notifications/{id}/read. Idempotent.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	n, err := h.notifications.MarkRead(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "Notification not found")
		return
	}
	respondJSON(w, http.StatusOK, n)
}

// Delete handles DELETE /api/notifications/{id}.
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.notifications.Delete(r.Context(), id); err != nil {
		respondServiceError(w, err, "Notification not found")
		return
	}
	respondMessage(w, http.StatusOK, "Notification deleted successfully")
}
