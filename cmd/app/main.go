package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/ansuz/internal"
	pkgconfig "github.com/starford/ansuz/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadIfExists(cmd.String("config"), cfg); err != nil {
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

func ask(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	question := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("usage: ansuz ask <question>")
	}

	res, err := internal.RunAsk(ctx, question, internal.WithConfig(cfg))
	if err != nil {
		return err
	}

	fmt.Println(res.Answer)
	if len(res.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, s := range res.Sources {
			fmt.Printf("  - %s (%s)\n", s.Title, s.Locator)
		}
	}
	return nil
}

func syncVault(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunSync(ctx, internal.WithConfig(cfg))
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
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
		Name:   "ansuz",
		Usage:  "Agentic retrieval over a Markdown knowledge base: note graph, vector search, and LLM tool calling",
		Flags:  []cli.Flag{configFlag},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP API, vault watcher, and SSE stream",
				Flags:  []cli.Flag{configFlag},
				Action: serve,
			},
			{
				Name:      "ask",
				Usage:     "Run one agent query against the knowledge base",
				ArgsUsage: "<question>",
				Flags:     []cli.Flag{configFlag},
				Action:    ask,
			},
			{
				Name:   "sync",
				Usage:  "Bring the note graph and embeddings up to date with the vault",
				Flags:  []cli.Flag{configFlag},
				Action: syncVault,
			},
			{
				Name:   "mcp",
				Usage:  "Expose the retrieval tools over MCP stdio",
				Flags:  []cli.Flag{configFlag},
				Action: mcp,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
