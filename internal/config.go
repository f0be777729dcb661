package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/vaultsite/internal/site"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Vault    VaultConfig       `yaml:"vault"`
	Export   ExportConfig      `yaml:"export"`
	Site     SiteConfig        `yaml:"site"`
	Manifest ManifestConfig    `yaml:"manifest"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Export.Validate(); err != nil {
		return err
	}
	if err := c.Site.Validate(); err != nil {
		return err
	}
	if err := c.Manifest.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds preview server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the note vault.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ExportConfig holds the output directory and the entry note.
type ExportConfig struct {
	Output string `yaml:"output"`
	Start  string `yaml:"start"`
}

// Validate validates the export configuration.
func (c *ExportConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Output, validation.Required),
		validation.Field(&c.Start, validation.Required),
	)
}

// SiteConfig controls scaffolding and building the static site.
type SiteConfig struct {
	Name     string `yaml:"name"`
	Scaffold bool   `yaml:"scaffold"`
	Build    bool   `yaml:"build"`
	Command  string `yaml:"command"`
}

// Validate validates the site configuration.
func (c *SiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Command, validation.When(c.Build, validation.Required)),
	)
}

// ManifestConfig holds the export manifest database location.
type ManifestConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the manifest configuration.
func (c *ManifestConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration for the preview server.
//
// Mode controls how the export trigger is protected:
//   - "disabled" (default): anyone reaching the server may trigger an export.
//   - "token": Bearer token authentication; Token must be non-empty.
//
// Read-only endpoints are never protected.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// BearerToken returns the token the export trigger requires, or "" when auth
// is disabled.
func (c *AuthConfig) BearerToken() string {
	if !c.AuthEnabled() {
		return ""
	}
	return c.Token
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8000,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		Export: ExportConfig{
			Output: "./site",
			Start:  "index.md",
		},
		Site: SiteConfig{
			Scaffold: true,
			Build:    true,
			Command:  site.DefaultCommand,
		},
		Manifest: ManifestConfig{
			Path: "./vaultsite.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
