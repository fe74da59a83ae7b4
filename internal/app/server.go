package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/docrag/internal/api/handlers"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// Routes builds the API router.
func Routes(a *App) http.Handler {
	queryHandler := handlers.NewQueryHandler(a.RAG, a.Retriever, a.Defaults())
	eventHandler := handlers.NewEventHandler(a.Router)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(a.Config.EventTimeout + 30*time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(api chi.Router) {
		api.Get("/query", queryHandler.Query)
		api.Post("/query", queryHandler.Query)
		api.Get("/search", queryHandler.Search)
		api.Post("/search", queryHandler.Search)

		api.Post("/events", eventHandler.Events)
		api.Post("/backfill", eventHandler.Backfill)
	})

	return r
}

// NewServer builds and wires all routes.
func NewServer(a *App) *Server {
	return &Server{httpServer: &http.Server{
		Addr:              ":" + a.Config.Port,
		Handler:           Routes(a),
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
