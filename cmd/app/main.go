package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/playbooksync/internal"
	"github.com/starford/playbooksync/internal/models"
	pkgconfig "github.com/starford/playbooksync/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Serve(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runOnce(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	run, err := internal.RunOnce(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
	if err != nil {
		return fmt.Errorf("sync run: %w", err)
	}
	fmt.Fprintf(os.Stdout, "run %s: %s (processed %d, enriched %d, documents created %d, errors %d)\n",
		run.ID, run.Status, run.Counts.Processed, run.Counts.Enriched, len(run.DocumentsCreated), len(run.Errors))
	if run.Status == models.RunFailed {
		return cli.Exit("sync run failed", 2)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
}

func importEntries(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	n, err := internal.ImportEntries(ctx, cmd.String("file"), internal.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	fmt.Fprintf(os.Stdout, "imported %d entries\n", n)
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "playbooksync",
		Usage:   "Fold captured sales knowledge into the team playbook every week",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the run history API and trigger runs on the configured schedule",
				Action: serve,
			},
			{
				Name:   "run",
				Usage:  "Execute one sync run now",
				Action: runOnce,
			},
			{
				Name:   "mcp",
				Usage:  "Serve run history over MCP on stdin/stdout",
				Action: serveMCP,
			},
			{
				Name:   "import",
				Usage:  "Load knowledge entries from a YAML or JSON file",
				Action: importEntries,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Entries file",
						Required: true,
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
