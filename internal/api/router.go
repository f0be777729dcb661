package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vaultsite/internal/index"
	"github.com/starford/vaultsite/internal/siteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// A non-empty token enforces Bearer auth on the export trigger; manifest reads
// stay open. sseHandler, if non-nil, is mounted at GET /events.
func NewRouter(svc *siteservice.Service, manifest index.Manifest, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, manifest)

	r := chi.NewRouter()

	// Manifest.
	r.Get("/manifest/files", h.Files)
	r.Get("/manifest/broken", h.Broken)
	r.Get("/manifest/backlinks/*", h.Backlinks)
	r.Get("/manifest/run", h.LastRun)

	// Export trigger.
	r.With(AuthMiddleware(token != "", token)).Post("/export", h.Export)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
