package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/taskflow-app/taskflow/database"
	"github.com/taskflow-app/taskflow/services"
)

// AuthHandler handles signup and login.
type AuthHandler struct {
	authService *services.AuthService
	users       *database.UserStore
	validate    *validator.Validate
}

func NewAuthHandler(authService *services.AuthService, users *database.UserStore) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		users:       users,
		validate:    validator.New(),
	}
}

type signupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Signup registers a new member account.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondMessage(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	hash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		logrus.WithError(err).Error("failed to hash password")
		respondMessage(w, http.StatusInternalServerError, "Error processing password")
		return
	}

	user := &database.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         database.RoleMember,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		if err == database.ErrEmailExists {
			respondMessage(w, http.StatusBadRequest, "User with this email already exists")
			return
		}
		logrus.WithError(err).Error("failed to save user")
		respondMessage(w, http.StatusInternalServerError, "Error saving user")
		return
	}

	logrus.WithFields(logrus.Fields{"email": user.Email, "role": user.Role}).Info("new user created")
	respondMessage(w, http.StatusCreated, "User created successfully")
}

// Login checks credentials and issues a token. The response for a wrong
// email and a wrong password is identical.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondMessage(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if err == database.ErrNotFound {
			respondMessage(w, http.StatusBadRequest, "Invalid credentials")
			return
		}
		logrus.WithError(err).Error("login lookup failed")
		respondMessage(w, http.StatusInternalServerError, "Server error")
		return
	}
	if !h.authService.CheckPassword(user.PasswordHash, req.Password) {
		respondMessage(w, http.StatusBadRequest, "Invalid credentials")
		return
	}

	token, err := h.authService.CreateJWT(user.ID, user.Role)
	if err != nil {
		logrus.WithError(err).Error("failed to create token")
		respondMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"role":  user.Role,
		"user": userResponse{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
			Role:  user.Role,
		},
	})
}

// validationMessage turns the first failed field into a short client
// message.
func validationMessage(err error) string {
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		fe := errs[0]
		switch fe.Tag() {
		case "required":
			return fe.Field() + " is required"
		case "email":
			return "Valid email is required"
		case "min":
			return fe.Field() + " must be at least " + fe.Param() + " characters"
		}
		return fe.Field() + " is invalid"
	}
	return "Invalid request"
}
