package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/taskflow-app/taskflow/database"
	"github.com/taskflow-app/taskflow/services"
)

// messageResponse is the wire shape for confirmations and errors.
type messageResponse struct {
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.WithError(err).Error("failed to encode response")
	}
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, messageResponse{Message: message})
}

// respondServiceError maps store and service errors to HTTP responses.
// Unexpected errors are logged and surfaced as a bare server error; no
// internals reach the caller.
func respondServiceError(w http.ResponseWriter, err error, notFoundMessage string) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		respondMessage(w, http.StatusNotFound, notFoundMessage)
	case errors.Is(err, database.ErrEmailExists):
		respondMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrVersionConflict):
		respondMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrValidation):
		respondMessage(w, http.StatusBadRequest, err.Error())
	default:
		logrus.WithError(err).Error("request failed")
		respondMessage(w, http.StatusInternalServerError, "Server error")
	}
}
