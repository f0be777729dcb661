package main

import (
	"context"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/starford/vaultsite/internal"
)

func TestRootCommand_AcceptsExportFlags(t *testing.T) {
	var cfg *internal.Config
	cmd := newCommand()
	cmd.Action = func(_ context.Context, c *cli.Command) error {
		var err error
		cfg, err = loadConfig(c)
		return err
	}

	// No config file at the default path.
	t.Chdir(t.TempDir())
	err := cmd.Run(context.Background(), []string{
		"vaultsite", "--vault", "notes", "-o", "public", "--start", "home.md", "--no-build",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if cfg.Vault.Path != "notes" || cfg.Export.Output != "public" || cfg.Export.Start != "home.md" || cfg.Site.Build {
		t.Errorf("cfg = %+v %+v %+v", cfg.Vault, cfg.Export, cfg.Site)
	}
}
