package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/inkday/internal"
	pkgconfig "github.com/starford/inkday/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

func reformat(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return errors.New("fmt: a diary file or directory is required")
	}
	check := cmd.Bool("check")

	var dirty []string
	for _, path := range cmd.Args().Slice() {
		results, err := internal.Reformat(path, check)
		if err != nil {
			return err
		}
		for _, r := range results {
			if r.Skipped {
				fmt.Fprintf(os.Stderr, "skipped %s: not a diary\n", r.Path)
				continue
			}
			if r.Changed {
				dirty = append(dirty, r.Path)
				fmt.Println(r.Path)
			}
		}
	}
	if check && len(dirty) > 0 {
		return cli.Exit(fmt.Sprintf("%d document(s) not in canonical form", len(dirty)), 1)
	}
	return nil
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}

	cmd := &cli.Command{
		Name:   "inkday",
		Usage:  "Calendar diary kept as a plain Markdown document, with a sync API and MCP tools",
		Action: serve,
		Flags:  []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, document watcher and event stream",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve diary tools over MCP stdio",
				Action: serveMCP,
			},
			{
				Name:      "fmt",
				Usage:     "Rewrite diary documents in canonical form (free-form prose is dropped)",
				ArgsUsage: "<file or directory>...",
				Action:    reformat,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "check",
						Usage: "List documents that are not canonical and exit non-zero instead of writing",
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
