package api

import "github.com/starford/vaultsite/internal/models"

// FilesResponse lists the files written by the latest export.
type FilesResponse struct {
	Files []models.ExportedFile `json:"files"`
	Total int                   `json:"total" example:"42"`
}

// BrokenResponse lists the unresolved links of the latest export.
type BrokenResponse struct {
	Links []models.LinkEdge `json:"links"`
	Total int               `json:"total" example:"3"`
}

// BacklinksResponse lists the notes linking to a target.
type BacklinksResponse struct {
	Target  string   `json:"target" example:"notes/hello.md"`
	Sources []string `json:"sources"`
}

// ExportResponse is returned after a triggered export.
type ExportResponse struct {
	Summary models.RunSummary `json:"summary"`
}

// nonNil returns an empty slice instead of nil so JSON renders [].
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
