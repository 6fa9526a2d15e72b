package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc DiaryService, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Whole-calendar sync.
	r.Get("/load", h.Load)
	r.Post("/save", h.Save)

	// Markdown document.
	r.Get("/export", h.Export)
	r.Post("/import", h.Import)

	// Single days.
	r.Get("/days/{key}", h.GetDay)
	r.Put("/days/{key}", h.PutDay)
	r.Delete("/days/{key}", h.DeleteDay)
	r.Post("/days/{key}/events", h.AddEvent)

	r.Get("/search", h.Search)
	r.Get("/tags", h.Tags)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
