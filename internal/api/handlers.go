package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vaultsite/internal/apperr"
	"github.com/starford/vaultsite/internal/index"
	"github.com/starford/vaultsite/internal/siteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc      *siteservice.Service
	manifest index.Manifest
}

// NewHandler creates a new Handler.
func NewHandler(svc *siteservice.Service, manifest index.Manifest) *Handler {
	return &Handler{svc: svc, manifest: manifest}
}

// wildcardPath extracts the file path from the URL wildcard.
// Supports encoded slashes (e.g. topics%2Fnote.md).
func wildcardPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Files handles GET /api/manifest/files.
//
//	@Summary		List the files written by the latest export
//	@Tags			manifest
//	@Produce		json
//	@Success		200	{object}	FilesResponse
//	@Router			/manifest/files [get]
func (h *Handler) Files(w http.ResponseWriter, _ *http.Request) {
	files, err := h.manifest.Files()
	if err != nil {
		slog.Error("api: list files failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, FilesResponse{Files: nonNil(files), Total: len(files)})
}

// Broken handles GET /api/manifest/broken.
//
//	@Summary		List unresolved links of the latest export
//	@Tags			manifest
//	@Produce		json
//	@Success		200	{object}	BrokenResponse
//	@Router			/manifest/broken [get]
func (h *Handler) Broken(w http.ResponseWriter, _ *http.Request) {
	links, err := h.manifest.BrokenLinks()
	if err != nil {
		slog.Error("api: broken links failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, BrokenResponse{Links: nonNil(links), Total: len(links)})
}

// Backlinks handles GET /api/manifest/backlinks/*.
//
//	@Summary		List notes linking to a file
//	@Tags			manifest
//	@Produce		json
//	@Param			path	path		string	true	"Vault path of the target"
//	@Success		200		{object}	BacklinksResponse
//	@Failure		400		{object}	errResponse
//	@Router			/manifest/backlinks/{path} [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	target := wildcardPath(r)
	if target == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	sources, err := h.manifest.Backlinks(target)
	if err != nil {
		slog.Error("api: backlinks failed", slog.String("path", target), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Target: target, Sources: nonNil(sources)})
}

// LastRun handles GET /api/manifest/run.
//
//	@Summary		Describe the latest export run
//	@Tags			manifest
//	@Produce		json
//	@Success		200	{object}	models.RunSummary
//	@Failure		404	{object}	errResponse
//	@Router			/manifest/run [get]
func (h *Handler) LastRun(w http.ResponseWriter, _ *http.Request) {
	run, err := h.manifest.LastRun()
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("no export recorded"))
		} else {
			slog.Error("api: last run failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// Export handles POST /api/export.
//
//	@Summary		Run an export now
//	@Tags			export
//	@Produce		json
//	@Success		200	{object}	ExportResponse
//	@Failure		404	{object}	errResponse
//	@Failure		422	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/export [post]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Export(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
		case errors.Is(err, apperr.ErrInvalidConfig):
			writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
		default:
			slog.Error("api: export failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, ExportResponse{Summary: res.Summary()})
}
