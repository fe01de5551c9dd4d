package main

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/taskflow-app/taskflow/database"
	"github.com/taskflow-app/taskflow/handlers"
	"github.com/taskflow-app/taskflow/services"
)

func main() {
	cfg, err := LoadConfig(".env")
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	// Initialize database
	db, err := database.InitDB(cfg.DatabasePath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize database")
	}
	defer db.Close()

	// Initialize stores and services
	userStore := database.NewUserStore(db)
	taskStore := database.NewTaskStore(db)
	notificationStore := database.NewNotificationStore(db)

	authService := services.NewAuthService(cfg.JWTSecret)
	notificationService := services.NewNotificationService(notificationStore, cfg.NotificationRetention)

	// Initialize WebSocket hub
	hub := services.NewHub()
	go hub.Run()

	taskService := services.NewTaskService(db, taskStore, userStore, notificationService, hub)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, userStore)
	taskHandler := handlers.NewTaskHandler(taskService)
	userHandler := handlers.NewUserHandler(userStore)
	notificationHandler := handlers.NewNotificationHandler(notificationService, userStore)
	wsHandler := handlers.NewWSHandler(hub)

	authMiddleware := handlers.NewAuthMiddleware(authService)

	// Setup router
	r := mux.NewRouter()
	r.Use(handlers.SecurityHeaders)
	r.Use(handlers.RequestLogger)

	api := r.PathPrefix("/api").Subrouter()

	// Public routes
	api.HandleFunc("/signup", authHandler.Signup).Methods("POST")
	api.HandleFunc("/login", authHandler.Login).Methods("POST")
	api.HandleFunc("/tasks", taskHandler.List).Methods("GET")
	api.HandleFunc("/users", userHandler.List).Methods("GET")

	// Protected routes
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

	// WebSocket route for real-time notifications
	protected.HandleFunc("/ws", wsHandler.Handle)

	// Admin routes
	admin := api.NewRoute().Subrouter()
	admin.Use(authMiddleware.Auth, authMiddleware.RequireAdmin)
	admin.HandleFunc("/users/{id}", userHandler.Delete).Methods("DELETE")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Route not found"}`))
	})

	// Setup CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      c.Handler(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logrus.WithField("port", cfg.Port).Info("server starting")
	logrus.Fatal(server.ListenAndServe())
}
