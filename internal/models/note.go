// Package models defines the domain types for vaultsite.
package models

import "time"

// File kinds.
const (
	KindNote  = "note"
	KindAsset = "asset"
)

// ExportedFile is one file of the reachability closure written to the output tree.
type ExportedFile struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	Checksum string `json:"checksum"`
	Size     int64  `json:"size"`
}

// LinkEdge is one rewritten link occurrence.
// Target is empty when the link could not be resolved or is external.
type LinkEdge struct {
	Source   string `json:"source"`
	Raw      string `json:"raw"`
	Target   string `json:"target,omitempty"`
	Syntax   string `json:"syntax"`
	External bool   `json:"external,omitempty"`
	Resolved bool   `json:"resolved"`
}

// RunSummary describes a completed export run.
type RunSummary struct {
	Start      string    `json:"start"`
	Vault      string    `json:"vault"`
	Convention string    `json:"convention"`
	Files      int       `json:"files"`
	Links      int       `json:"links"`
	Broken     int       `json:"broken"`
	FinishedAt time.Time `json:"finished_at"`
}

// ExportEvent reports the outcome of one export attempt to listeners.
// Summary is nil when the attempt failed.
type ExportEvent struct {
	Summary *RunSummary `json:"summary,omitempty"`
	Changed []string    `json:"changed,omitempty"`
	Error   string      `json:"error,omitempty"`
}
