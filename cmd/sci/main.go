package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/structidx/sci/internal/config"
	"github.com/structidx/sci/internal/debug"
	scierrors "github.com/structidx/sci/internal/errors"
	"github.com/structidx/sci/internal/indexer"
	"github.com/structidx/sci/internal/mcp"
	"github.com/structidx/sci/internal/query"
	"github.com/structidx/sci/internal/snapshot"
	"github.com/structidx/sci/internal/types"
	"github.com/structidx/sci/internal/version"
)

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	root := c.String("root")
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve working directory: %w", err)
		}
		root = wd
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path %q: %w", root, err)
	}

	cfg, err := config.LoadFrom(absRoot, c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config for %s: %w", absRoot, err)
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = append(cfg.Exclude, excludeFlags...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "sci",
		Usage:   "Structural code index for Python, SQL, and Markdown source trees",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory to index (default: current directory)",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude files matching glob patterns (e.g., --exclude '**/fixtures/**')",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path (default: .sci.kdl in the project root)",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Verbose diagnostic logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "index",
				Usage:  "Build the structural index and persist it under .sci/",
				Action: indexCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "json",
						Aliases: []string{"j"},
						Usage:   "Output stats as JSON",
					},
					&cli.StringFlag{
						Name:    "search",
						Aliases: []string{"s"},
						Usage:   "Run a search against the fresh index after building",
					},
				},
			},
			{
				Name:      "search",
				Aliases:   []string{"s"},
				Usage:     "Search indexed components by name, docstring, or snippet",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "type",
						Aliases: []string{"t"},
						Usage:   "Restrict to one component type (function, class, route, model, table, view, doc_section, file_summary)",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum results",
					},
					&cli.BoolFlag{
						Name:    "json",
						Aliases: []string{"j"},
						Usage:   "Output as JSON",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Run the MCP server on stdio",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "watch",
						Aliases: []string{"w"},
						Usage:   "Rebuild the index automatically when source files change",
					},
				},
			},
			{
				Name:   "watch",
				Usage:  "Build the index and rebuild it whenever source files change",
				Action: watchCommand,
			},
			{
				Name:   "stats",
				Usage:  "Show component counts for the current index",
				Action: statsCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "json",
						Aliases: []string{"j"},
						Usage:   "Output as JSON",
					},
				},
			},
		},
	}
}

func indexCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	if _, err := debug.Init(c.Bool("verbose")); err != nil {
		return err
	}
	defer debug.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	builder := indexer.New(cfg)
	doc, warnings, err := builder.BuildAndSave(ctx)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", w)
	}

	stats := doc.ComputeStats()
	if c.Bool("json") {
		if err := printJSON(stats); err != nil {
			return err
		}
	} else {
		fmt.Printf("Indexed %d components across %d files in %v\n",
			stats.TotalComponents, stats.Files, time.Since(started).Round(time.Millisecond))
		for _, kind := range types.AllKinds {
			if n := stats.ByKind[kind]; n > 0 {
				fmt.Printf("  %-12s %d\n", kind, n)
			}
		}
		fmt.Printf("Index written to %s\n", cfg.IndexPath())
	}

	if queryText := c.String("search"); queryText != "" {
		engine := query.New(snapshot.NewCache(cfg), cfg)
		results, err := engine.SearchCode(ctx, queryText, "", 0)
		if err != nil {
			return err
		}
		return printResults(results, c.Bool("json"))
	}
	return nil
}

func watchCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	if _, err := debug.Init(c.Bool("verbose")); err != nil {
		return err
	}
	defer debug.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cache := snapshot.NewCache(cfg)
	snap, err := cache.Rebuild(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d components, watching %s for changes\n",
		len(snap.Components()), cfg.Project.Root)

	watcher, err := indexer.NewWatcher(cfg, indexer.New(cfg).Extensions(), func() {
		fresh, err := cache.TryRebuild(context.Background())
		switch {
		case errors.Is(err, scierrors.ErrRebuildInProgress):
		case err != nil:
			fmt.Fprintf(os.Stderr, "Rebuild failed: %v\n", err)
		default:
			fmt.Printf("Rebuilt: %d components\n", len(fresh.Components()))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	defer watcher.Stop()

	<-ctx.Done()
	return nil
}

func searchCommand(c *cli.Context) error {
	queryText := c.Args().First()
	if queryText == "" {
		return fmt.Errorf("usage: sci search <query>")
	}

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	if _, err := debug.Init(c.Bool("verbose")); err != nil {
		return err
	}
	defer debug.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := query.New(snapshot.NewCache(cfg), cfg)
	results, err := engine.SearchCode(ctx, queryText, c.String("type"), c.Int("limit"))
	if err != nil {
		return err
	}

	return printResults(results, c.Bool("json"))
}

func printResults(results []query.SearchResult, asJSON bool) error {
	if asJSON {
		return printJSON(results)
	}
	if len(results) == 0 {
		fmt.Println("No matches")
		return nil
	}
	for _, r := range results {
		comp := r.Component
		fmt.Printf("%6.1f  %-12s %s  %s:%d\n", r.Score, comp.Kind, comp.QualifiedName, comp.FilePath, comp.StartLine)
		if comp.Summary != "" {
			fmt.Printf("        %s\n", comp.Summary)
		}
	}
	return nil
}

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	// Stdout carries the MCP protocol, so diagnostics go to a log file.
	debug.SetMCPMode(true)
	if _, err := debug.Init(c.Bool("verbose")); err != nil {
		return err
	}
	defer debug.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cache := snapshot.NewCache(cfg)
	server := mcp.NewServer(cache, cfg)

	if c.Bool("watch") || cfg.Index.WatchMode {
		watcher, err := indexer.NewWatcher(cfg, indexer.New(cfg).Extensions(), func() {
			if _, err := cache.TryRebuild(context.Background()); err != nil {
				if !errors.Is(err, scierrors.ErrRebuildInProgress) {
					debug.Error("watch", err, "rebuild after file change failed")
				}
			}
		})
		if err != nil {
			return fmt.Errorf("failed to start file watcher: %w", err)
		}
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("failed to start file watcher: %w", err)
		}
		defer watcher.Stop()
	}

	return server.Run(ctx)
}

func statsCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	if _, err := debug.Init(c.Bool("verbose")); err != nil {
		return err
	}
	defer debug.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := query.New(snapshot.NewCache(cfg), cfg)
	stats, err := engine.Stats(ctx)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return printJSON(stats)
	}
	fmt.Printf("%d components across %d files\n", stats.TotalComponents, stats.Files)
	for _, kind := range types.AllKinds {
		if n := stats.ByKind[kind]; n > 0 {
			fmt.Printf("  %-12s %d\n", kind, n)
		}
	}
	return nil
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
