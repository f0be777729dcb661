package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/starford/vaultsite/internal/export"
	"github.com/starford/vaultsite/internal/site"
)

// SiteHandler serves the rendered site from <output>/site, or the exported
// Markdown tree from <output>/wiki while no build exists. The choice is made
// per request so a build finishing under a running server is picked up.
type SiteHandler struct {
	outputRoot string
}

// NewSiteHandler creates a handler rooted at the export output directory.
func NewSiteHandler(outputRoot string) *SiteHandler {
	return &SiteHandler{outputRoot: outputRoot}
}

// Dir returns the directory currently served.
func (h *SiteHandler) Dir() string {
	built := filepath.Join(h.outputRoot, site.SiteDir)
	if info, err := os.Stat(built); err == nil && info.IsDir() {
		return built
	}
	return filepath.Join(h.outputRoot, export.WikiDir)
}

// ServeHTTP serves the reload script and files below Dir. http.FileServer
// rejects paths escaping it.
func (h *SiteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	if r.URL.Path == site.ReloadScriptPath {
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		_, _ = w.Write(site.ReloadScript)
		return
	}
	http.FileServer(http.Dir(h.Dir())).ServeHTTP(w, r)
}
