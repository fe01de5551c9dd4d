package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/taskflow-app/taskflow/database"
	"github.com/taskflow-app/taskflow/services"
)

// testAPI wires the full handler stack against an in-memory database, the
// same way main does.
type testAPI struct {
	router *mux.Router
	db     *sql.DB
	users  *database.UserStore
	auth   *services.AuthService
	hub    *services.Hub
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	db, err := database.InitDB(":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	userStore := database.NewUserStore(db)
	taskStore := database.NewTaskStore(db)
	notificationStore := database.NewNotificationStore(db)

	authService := services.NewAuthService("test-secret")
	notificationService := services.NewNotificationService(notificationStore, 100)

	hub := services.NewHub()
	go hub.Run()

	taskService := services.NewTaskService(db, taskStore, userStore, notificationService, hub)

	authHandler := NewAuthHandler(authService, userStore)
	taskHandler := NewTaskHandler(taskService)
	userHandler := NewUserHandler(userStore)
	notificationHandler := NewNotificationHandler(notificationService, userStore)
	wsHandler := NewWSHandler(hub)
	authMiddleware := NewAuthMiddleware(authService)

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/signup", authHandler.Signup).Methods("POST")
	api.HandleFunc("/login", authHandler.Login).Methods("POST")
	api.HandleFunc("/tasks", taskHandler.List).Methods("GET")
	api.HandleFunc("/users", userHandler.List).Methods("GET")

	protected := api.NewRoute().Subrouter()
	protected.Use(authMiddleware.Auth)
	protected.HandleFunc("/tasks", taskHandler.Create).Methods("POST")
	protected.HandleFunc("/tasks/{id}", taskHandler.Update).Methods("PUT")
	protected.HandleFunc("/tasks/{id}", taskHandler.Delete).Methods("DELETE")
	protected.HandleFunc("/profile", userHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/profile", userHandler.UpdateProfile).Methods("PUT")
	protected.HandleFunc("/notifications", notificationHandler.List).Methods("GET")
	protected.HandleFunc("/notifications", notificationHandler.Create).Methods("POST")
	protected.HandleFunc("/notifications/{id}/read", notificationHandler.MarkRead).Methods("PUT")
	protected.HandleFunc("/notifications/{id}", notificationHandler.Delete).Methods("DELETE")
	protected.HandleFunc("/ws", wsHandler.Handle)

	admin := api.NewRoute().Subrouter()
	admin.Use(authMiddleware.Auth, authMiddleware.RequireAdmin)
	admin.HandleFunc("/users/{id}", userHandler.Delete).Methods("DELETE")

	return &testAPI{router: r, db: db, users: userStore, auth: authService, hub: hub}
}

// seedUser creates an account directly and returns it with a valid token.
func (a *testAPI) seedUser(t *testing.T, name, email, role string) (*database.User, string) {
	t.Helper()
	user := &database.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: "unused",
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, a.users.Create(context.Background(), user))

	token, err := a.auth.CreateJWT(user.ID, user.Role)
	require.NoError(t, err)
	return user, token
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out
}
