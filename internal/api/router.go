// Package api exposes the pipeline to collaborators over HTTP: a kickoff
// endpoint and the progress poll the presentation layer drives its status
// bar from.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ImperatorDravidor/inflio-sub007/internal/logger"
)

func NewRouter(h *PipelineHandler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/pipeline", func(r chi.Router) {
		r.Post("/", h.Start)
		r.Get("/", h.List)
		r.Get("/{runID}/progress", h.Progress)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entry := logger.New().WithRequest(r)
		start := time.Now()
		next.ServeHTTP(w, r)
		entry.WithField("duration_ms", time.Since(start).Milliseconds()).Info("request handled")
	})
}
