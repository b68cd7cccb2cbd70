package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/phpref/internal/composer"
	"github.com/standardbeagle/phpref/internal/config"
	"github.com/standardbeagle/phpref/internal/core"
	"github.com/standardbeagle/phpref/internal/debug"
	"github.com/standardbeagle/phpref/internal/diagnostics"
	"github.com/standardbeagle/phpref/internal/index"
	"github.com/standardbeagle/phpref/internal/mcp"
	"github.com/standardbeagle/phpref/internal/phptree"
	"github.com/standardbeagle/phpref/internal/refactor"
	"github.com/standardbeagle/phpref/internal/types"
	"github.com/standardbeagle/phpref/internal/watcher"
)

var version = "0.3.0"

func main() {
	app := &cli.App{
		Name:    "phpref",
		Usage:   "PHP symbol index and type-aware refactoring engine",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a .phpref.kdl or .phpref.toml config file",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "write debug logs to a temp file",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				debug.EnableDebug = "true"
				logPath, err := debug.InitDebugLogFile()
				if err != nil {
					return err
				}
				fmt.Fprintln(os.Stderr, "debug log:", logPath)
			}
			return nil
		},
		After: func(c *cli.Context) error {
			debug.CloseDebugLog()
			return nil
		},
		Commands: []*cli.Command{
			indexCommand(),
			renameCommand(),
			moveCommand(),
			diagnosticsCommand(),
			fixImportsCommand(),
			serveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// engine bundles the services every command needs.
type engine struct {
	cfg      *config.Config
	files    *core.FileService
	parser   *phptree.Parser
	idx      *index.Index
	scanner  *index.Scanner
	resolver *composer.Resolver
}

func buildEngine(c *cli.Context) (*engine, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	files := core.NewFileService()
	parser := phptree.NewParser()
	idx := index.NewIndex(parser)
	resolver, err := composer.Load(cfg.Project.Root)
	if err != nil {
		return nil, err
	}
	return &engine{
		cfg:      cfg,
		files:    files,
		parser:   parser,
		idx:      idx,
		scanner:  index.NewScanner(files, idx, cfg),
		resolver: resolver,
	}, nil
}

func (e *engine) scan(ctx context.Context, verbose bool) error {
	var progress index.ProgressFunc
	if verbose {
		progress = func(done, total int, _ string) {
			fmt.Fprintf(os.Stderr, "\rindexing %d/%d", done, total)
		}
	}
	result, err := e.scanner.Scan(ctx, progress)
	if err != nil {
		return err
	}
	if verbose {
		fmt.Fprintln(os.Stderr)
	}
	files, symbols := e.idx.Stats()
	fmt.Printf("indexed %d files (%d symbols) in %s\n", files, symbols, result.Duration.Round(1e6))
	for _, path := range result.ParseFailures {
		fmt.Fprintf(os.Stderr, "parse failure: %s\n", path)
	}
	return nil
}

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "scan the workspace and report index statistics",
		Action: func(c *cli.Context) error {
			e, err := buildEngine(c)
			if err != nil {
				return err
			}
			return e.scan(c.Context, true)
		},
	}
}

func renameCommand() *cli.Command {
	return &cli.Command{
		Name:      "rename-method",
		Usage:     "rename the method at a cursor position across the workspace",
		ArgsUsage: "FILE LINE COLUMN NEW_NAME",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "write", Aliases: []string{"w"}, Usage: "apply edits to disk"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 4 {
				return cli.Exit("usage: phpref rename-method FILE LINE COLUMN NEW_NAME", 2)
			}
			e, err := buildEngine(c)
			if err != nil {
				return err
			}
			if err := e.scan(c.Context, false); err != nil {
				return err
			}

			var line, column int
			if _, err := fmt.Sscanf(c.Args().Get(1), "%d", &line); err != nil {
				return cli.Exit("LINE must be an integer", 2)
			}
			if _, err := fmt.Sscanf(c.Args().Get(2), "%d", &column); err != nil {
				return cli.Exit("COLUMN must be an integer", 2)
			}

			renamer := refactor.NewRenamer(e.files, e.idx, e.parser)
			edits, err := renamer.PlanRename(c.Args().Get(0), types.Position{Line: line, Column: column}, c.Args().Get(3))
			if err != nil {
				return err
			}
			return finishEdits(e, edits, c.Bool("write"))
		},
	}
}

func moveCommand() *cli.Command {
	return &cli.Command{
		Name:      "move",
		Usage:     "move or rename a PHP file, propagating namespace and import changes",
		ArgsUsage: "OLD_PATH NEW_PATH",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "write", Aliases: []string{"w"}, Usage: "move the file and apply edits to disk"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return cli.Exit("usage: phpref move OLD_PATH NEW_PATH", 2)
			}
			oldPath, newPath := c.Args().Get(0), c.Args().Get(1)

			e, err := buildEngine(c)
			if err != nil {
				return err
			}
			if err := e.scan(c.Context, false); err != nil {
				return err
			}

			write := c.Bool("write")
			if write {
				if err := os.Rename(oldPath, newPath); err != nil {
					return err
				}
				e.scanner.Remove(oldPath)
			} else if content, ok := e.files.GetContent(oldPath); ok {
				e.files.SetContent(newPath, content)
			}

			mover := refactor.NewMover(e.files, e.resolver, e.parser, e.cfg)
			plan, err := mover.PlanMove(oldPath, newPath)
			if err != nil {
				return err
			}
			if plan.OldFQN != "" {
				fmt.Printf("%s -> %s\n", plan.OldFQN, plan.NewFQN)
			}
			return finishEdits(e, plan.Edits, write)
		},
	}
}

func diagnosticsCommand() *cli.Command {
	return &cli.Command{
		Name:      "diagnostics",
		Usage:     "report unresolved type references",
		ArgsUsage: "[FILE...]",
		Action: func(c *cli.Context) error {
			e, err := buildEngine(c)
			if err != nil {
				return err
			}
			if err := e.scan(c.Context, false); err != nil {
				return err
			}

			paths := c.Args().Slice()
			if len(paths) == 0 {
				paths, err = e.files.Enumerate(e.cfg.Project.Root, e.cfg.Include, e.cfg.Exclude, e.cfg.Index.FollowSymlinks)
				if err != nil {
					return err
				}
			}

			checker := diagnostics.NewChecker(e.idx, e.parser)
			total := 0
			for _, path := range paths {
				content, ok := e.files.GetContent(path)
				if !ok {
					continue
				}
				for _, d := range checker.Check(path, content) {
					total++
					fmt.Printf("%s:%d:%d %s", d.FilePath, d.Span.Start.Line, d.Span.Start.Column, d.Message)
					if len(d.Suggestions) > 0 {
						fmt.Printf(" (did you mean %s?)", d.Suggestions[0])
					}
					fmt.Println()
				}
			}
			if total > 0 {
				return cli.Exit(fmt.Sprintf("%d unresolved references", total), 1)
			}
			return nil
		},
	}
}

func fixImportsCommand() *cli.Command {
	return &cli.Command{
		Name:      "fix-imports",
		Usage:     "insert use statements for missing imports; with FQN, insert that import directly",
		ArgsUsage: "FILE [FQN]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "write", Aliases: []string{"w"}, Usage: "apply edits to disk"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 || c.NArg() > 2 {
				return cli.Exit("usage: phpref fix-imports FILE [FQN]", 2)
			}
			path := c.Args().Get(0)

			e, err := buildEngine(c)
			if err != nil {
				return err
			}
			if err := e.scan(c.Context, false); err != nil {
				return err
			}

			content, ok := e.files.GetContent(path)
			if !ok {
				return cli.Exit("cannot read "+path, 1)
			}

			var fqns []string
			if c.NArg() == 2 {
				fqns = []string{c.Args().Get(1)}
			} else {
				checker := diagnostics.NewChecker(e.idx, e.parser)
				for _, d := range checker.Check(path, content) {
					if len(d.Suggestions) != 1 {
						// Ambiguous or unknown: surfaced, never auto-picked.
						fmt.Fprintf(os.Stderr, "skipping %s (%d candidates)\n", d.Message, len(d.Suggestions))
						continue
					}
					fqns = append(fqns, d.Suggestions[0])
				}
			}
			normalized, err := refactor.NormalizeEdits(refactor.PlanAddImports(path, content, fqns))
			if err != nil {
				return err
			}
			return finishEdits(e, normalized, c.Bool("write"))
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the engine over MCP on stdio",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "watch", Usage: "rescan files as they change on disk"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			if c.Bool("watch") {
				cfg.Index.WatchMode = true
			}

			server, err := mcp.NewServer(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.Index.WatchMode {
				w, err := watcher.New(cfg, server.Scanner())
				if err != nil {
					return err
				}
				if err := w.Start(); err != nil {
					return err
				}
				defer w.Stop()
			}

			return server.Run(ctx)
		},
	}
}

// finishEdits previews or applies a planned edit set.
func finishEdits(e *engine, edits []types.EditOperation, write bool) error {
	if len(edits) == 0 {
		fmt.Println("no changes")
		return nil
	}
	if !write {
		preview, err := refactor.RenderPreview(e.files, e.cfg.Project.Root, edits)
		if err != nil {
			return err
		}
		fmt.Print(preview)
		return nil
	}
	touched, err := refactor.Apply(e.files, edits)
	if err != nil {
		return err
	}
	for _, path := range touched {
		if err := e.scanner.ScanPath(path); err != nil {
			fmt.Fprintf(os.Stderr, "warning: rescan of %s failed: %v\n", path, err)
		}
		fmt.Println("updated", path)
	}
	return nil
}
