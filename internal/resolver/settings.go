package resolver

import (
	"encoding/json"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/vaultsite/internal/apperr"
	"github.com/starford/vaultsite/internal/storage"
)

// Convention is the vault-wide rule for interpreting a link's path.
type Convention string

const (
	// Absolute paths are always relative to the vault root.
	Absolute Convention = "absolute"
	// Relative paths are relative to the referencing file's directory.
	Relative Convention = "relative"
	// Shortest paths are a bare file name when unique, else vault-root-relative.
	Shortest Convention = "shortest"
)

// SettingsPath is the editor's vault settings file, relative to the vault root.
const SettingsPath = ".obsidian/app.json"

// Settings holds the vault settings the exporter depends on. It is read once
// per run and passed by value afterwards.
type Settings struct {
	Convention Convention `json:"newLinkFormat"`
}

// Validate validates the settings.
func (s *Settings) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Convention, validation.Required, validation.In(Absolute, Relative, Shortest)),
	)
}

// LoadSettings reads SettingsPath from the vault. A missing or unreadable file
// is an error; a missing newLinkFormat key means Shortest.
func LoadSettings(vault storage.Provider) (Settings, error) {
	data, err := vault.Read(SettingsPath)
	if err != nil {
		return Settings{}, fmt.Errorf("resolver: vault settings: %w", err)
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("resolver: parse %s: %w", SettingsPath, err)
	}
	if s.Convention == "" {
		s.Convention = Shortest
	}
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("resolver: %s: %w: %w", SettingsPath, apperr.ErrInvalidConfig, err)
	}
	return s, nil
}
