package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/taskflow-app/taskflow/database"
)

// UserHandler exposes profile and team management. None of these endpoints
// have notification side effects.
type UserHandler struct {
	users    *database.UserStore
	validate *validator.Validate
}

func NewUserHandler(users *database.UserStore) *UserHandler {
	return &UserHandler{
		users:    users,
		validate: validator.New(),
	}
}

type profileRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// GetProfile handles GET /api/profile for the session user.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		respondMessage(w, http.StatusUnauthorized, "Access token missing")
		return
	}

	user, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		respondServiceError(w, err, "User not found")
		return
	}
	respondJSON(w, http.StatusOK, userResponse{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
	})
}

// UpdateProfile handles PUT /api/profile. Only name and email are mutable;
// the role never changes after signup.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		respondMessage(w, http.StatusUnauthorized, "Access token missing")
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondMessage(w, http.StatusBadRequest, "Name and email are required")
		return
	}

	user, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		respondServiceError(w, err, "User not found")
		return
	}
	user.Name = req.Name
	user.Email = req.Email

	if err := h.users.Update(r.Context(), user); err != nil {
		if err == database.ErrEmailExists {
			respondMessage(w, http.StatusBadRequest, "Email already in use by another account")
			return
		}
		respondServiceError(w, err, "User not found")
		return
	}
	respondJSON(w, http.StatusOK, userResponse{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
	})
}

// List handles GET /api/users: the team listing, without credential
// material.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		respondServiceError(w, err, "User not found")
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role})
	}
	respondJSON(w, http.StatusOK, out)
}

// Delete handles DELETE /api/users/{id}. Admin only; routing enforces the
// role check.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.users.Delete(r.Context(), id); err != nil {
		respondServiceError(w, err, "User not found")
		return
	}
	respondMessage(w, http.StatusOK, "User deleted successfully")
}
