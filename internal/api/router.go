package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/playbooksync/internal/history"
)

// NewRouter creates a chi router with the run history routes.
// sseHandler, if non-nil, is mounted at GET /events.
func NewRouter(svc *history.Service, sseHandler http.Handler, logger *slog.Logger) chi.Router {
	h := NewHandler(svc, logger)

	r := chi.NewRouter()
	r.Use(RequestLogger(logger))

	r.Get("/runs", h.ListRuns)
	r.Get("/runs/{id}", h.GetRun)
	r.Get("/runs/{id}/matches", h.ListMatches)
	r.Get("/documents", h.ListDocuments)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}
	return r
}
