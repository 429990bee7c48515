package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parchment-ai/parchment/internal/api"
	"github.com/parchment-ai/parchment/internal/api/handlers"
	"github.com/parchment-ai/parchment/internal/api/middleware"
)

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	DocumentHandler *handlers.DocumentHandler
	ChatHandler     *handlers.ChatHandler
	DB              Pinger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 50 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.Sentry)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if cfg.DB != nil {
			if err := cfg.DB.Ping(r.Context()); err != nil {
				api.Error(w, http.StatusServiceUnavailable, "database unreachable")
				return
			}
		}
		api.Success(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	mount := func(r chi.Router) {
		r.Post("/ingest", cfg.DocumentHandler.Ingest)
		r.Post("/chat", cfg.ChatHandler.Chat)
		r.Get("/documents", cfg.DocumentHandler.List)
		r.Delete("/documents/{id}", cfg.DocumentHandler.Delete)
		r.Get("/documents/{id}/download", cfg.DocumentHandler.Download)
		r.Get("/stats", cfg.DocumentHandler.Stats)
	}

	r.Route("/api/v1", mount)

	// Unversioned aliases kept for clients predating /api/v1.
	r.Route("/api", mount)

	return r
}
