package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/vaultsite/internal"
	pkgconfig "github.com/starford/vaultsite/pkg/config"
)

const defaultConfigPath = "config/config.yaml"

type runFunc func(ctx context.Context, opts ...internal.Option) error

// loadConfig merges defaults, the config file and command-line overrides, in
// that order, and validates the result.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()

	configPath := cmd.String("config")
	if cmd.IsSet("config") {
		if err := pkgconfig.Decode(configPath, cfg); err != nil {
			return nil, err
		}
	} else if _, err := pkgconfig.DecodeIfExists(configPath, cfg); err != nil {
		return nil, err
	}

	if cmd.IsSet("vault") {
		cfg.Vault.Path = cmd.String("vault")
	}
	if cmd.IsSet("output") {
		cfg.Export.Output = cmd.String("output")
	}
	if cmd.IsSet("start") {
		cfg.Export.Start = cmd.String("start")
	}
	if cmd.IsSet("no-build") && cmd.Bool("no-build") {
		cfg.Site.Build = false
	}

	if err := pkgconfig.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func action(run runFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
		return run(ctx, internal.WithConfig(cfg))
	}
}

func exportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "vault",
			Usage:   "Path to the vault directory",
			Sources: cli.EnvVars("VAULTSITE_VAULT"),
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output directory; the exported tree is written to <output>/wiki",
			Sources: cli.EnvVars("VAULTSITE_OUTPUT"),
		},
		&cli.StringFlag{
			Name:    "start",
			Usage:   "Vault path of the entry note",
			Sources: cli.EnvVars("VAULTSITE_START"),
		},
		&cli.BoolFlag{
			Name:  "no-build",
			Usage: "Skip the static site build after exporting",
		},
	}
}

// newCommand builds the CLI. The root command exports, so it takes the same
// flags as the export subcommand.
func newCommand() *cli.Command {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: defaultConfigPath,
		Value:       defaultConfigPath,
		Sources:     cli.EnvVars("VAULTSITE_CONFIG"),
	}

	return &cli.Command{
		Name:   "vaultsite",
		Usage:  "Publish the notes reachable from an entry note as a static documentation site",
		Action: action(internal.Export),
		Flags:  append([]cli.Flag{configFlag}, exportFlags()...),
		Commands: []*cli.Command{
			{
				Name:   "export",
				Usage:  "Export the vault once and build the site",
				Flags:  exportFlags(),
				Action: action(internal.Export),
			},
			{
				Name:   "serve",
				Usage:  "Export, serve the site with live reload and re-export on vault changes",
				Flags:  exportFlags(),
				Action: action(internal.Serve),
			},
			{
				Name:   "mcp",
				Usage:  "Serve export tools over the Model Context Protocol on stdio",
				Flags:  exportFlags(),
				Action: action(internal.ServeMCP),
			},
			{
				Name:   "report",
				Usage:  "Print broken links of the last export; exits non-zero if there are any",
				Flags:  exportFlags(),
				Action: action(internal.Report),
			},
		},
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
