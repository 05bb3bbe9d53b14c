package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joineazy/feedback-apiserver/config"
	"github.com/joineazy/feedback-apiserver/internal/db"
	"github.com/joineazy/feedback-apiserver/internal/handlers"
	"github.com/joineazy/feedback-apiserver/internal/services"
	"github.com/joineazy/feedback-apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	cfg        config.Config

	// ready flips to true once the database bootstrap has succeeded;
	// until then /healthz reports not ready.
	ready atomic.Bool
}

// New constructs a Server with basic middleware and defaults. The database
// is opened lazily; Start brings it to a servable state.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if cfg.JWT.Secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(cfg)
	if err != nil {
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	projectRepo := store.NewProjectRepository(dbConn)
	feedbackRepo := store.NewFeedbackRepository(dbConn)

	userService := services.NewUserService(userRepo)
	projectService := services.NewProjectService(projectRepo, userRepo)
	feedbackService := services.NewFeedbackService(feedbackRepo, userRepo, projectRepo)

	authMiddleware := handlers.RequireAuth(userService, cfg.JWT.Secret)
	debug := !cfg.Production()

	authHandler := handlers.NewAuthHandler(userService, cfg.JWT.Secret, cfg.JWT.TokenTTL, debug)
	studentHandler := handlers.NewStudentHandler(userService, debug)
	projectHandler := handlers.NewProjectHandler(projectService, debug)
	feedbackHandler := handlers.NewFeedbackHandler(feedbackService, projectService, debug)

	srv := &Server{db: dbConn, cfg: cfg}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", srv.healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler, authMiddleware)
	})
	router.Route("/students", func(r chi.Router) {
		handlers.StudentRouter(r, studentHandler, authMiddleware)
	})
	router.Route("/projects", func(r chi.Router) {
		handlers.ProjectRouter(r, projectHandler, authMiddleware)
	})
	router.Route("/feedback", func(r chi.Router) {
		handlers.FeedbackRouter(r, feedbackHandler, authMiddleware)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	srv.router = router
	srv.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start bootstraps the database and runs the HTTP server. If the bootstrap
// exhausts its retries the server still comes up, but stays not-ready:
// requests hitting the store will fail until the database recovers and a
// restart reruns the bootstrap.
func (s *Server) Start() error {
	go func() {
		if err := db.BootstrapWithRetry(context.Background(), s.db, s.cfg); err != nil {
			log.Printf("warning: database bootstrap exhausted retries, serving in not-ready state: %v", err)
			return
		}
		s.ready.Store(true)
		log.Printf("database bootstrap complete")
	}()

	log.Printf("listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"starting"}`))
		return
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
