// Package api serves the gallery, submissions and notifications over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

func NewRouter(h *Handler, logger zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger.With().Str("component", "http").Logger()))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)
	r.Get("/system", h.System)
	r.Post("/connect", h.Connect)
	r.Get("/notifications", h.Notifications)
	r.Get("/export", h.Export)

	r.Route("/tasks", func(r chi.Router) {
		r.Post("/", h.CreateTask)
		r.Get("/", h.ListTasks)
		r.Delete("/", h.ClearTasks)
		r.Post("/batch", h.RunBatch)
		r.Post("/reload", h.ReloadTasks)
		r.Get("/{id}", h.GetTask)
	})

	return r
}

func requestLogger(l zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			l.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		})
	}
}
