// Package mcp exposes the refactoring engine over the Model Context
// Protocol so editor agents can plan and apply edits through stdio.
package mcp

import (
	"context"
	"encoding/json"
	"os"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/phpref/internal/composer"
	"github.com/standardbeagle/phpref/internal/config"
	"github.com/standardbeagle/phpref/internal/core"
	"github.com/standardbeagle/phpref/internal/debug"
	"github.com/standardbeagle/phpref/internal/diagnostics"
	"github.com/standardbeagle/phpref/internal/index"
	"github.com/standardbeagle/phpref/internal/phptree"
	"github.com/standardbeagle/phpref/internal/refactor"
	"github.com/standardbeagle/phpref/internal/types"
)

const serverVersion = "0.3.0"

// Server wires the engine's services behind MCP tools.
type Server struct {
	server  *mcp.Server
	cfg     *config.Config
	files   *core.FileService
	idx     *index.Index
	scanner *index.Scanner
	renamer *refactor.Renamer
	mover   *refactor.Mover
	checker *diagnostics.Checker
}

func NewServer(cfg *config.Config) (*Server, error) {
	files := core.NewFileService()
	parser := phptree.NewParser()
	idx := index.NewIndex(parser)
	scanner := index.NewScanner(files, idx, cfg)
	resolver, err := composer.Load(cfg.Project.Root)
	if err != nil {
		return nil, err
	}

	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "phpref",
			Version: serverVersion,
		}, nil),
		cfg:     cfg,
		files:   files,
		idx:     idx,
		scanner: scanner,
		renamer: refactor.NewRenamer(files, idx, parser),
		mover:   refactor.NewMover(files, resolver, parser, cfg),
		checker: diagnostics.NewChecker(idx, parser),
	}
	s.registerTools()
	return s, nil
}

// Scanner exposes the server's scanner so a file watcher can share it.
func (s *Server) Scanner() *index.Scanner {
	return s.scanner
}

// Run performs the initial workspace scan and serves on stdio until the
// context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	debug.SetMCPMode(true)
	if _, err := s.scanner.Scan(ctx, nil); err != nil {
		debug.LogIndexing("initial scan failed: %v", err)
	}
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "rename_method",
		Description: "Rename the method at a cursor position, propagating to every call site provably bound to the owning class. Interface methods fan out to implementors.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"file": {
					Type:        "string",
					Description: "Path of the file containing the method definition or call",
				},
				"line": {
					Type:        "integer",
					Description: "1-based cursor line on the method name",
				},
				"column": {
					Type:        "integer",
					Description: "0-based cursor column on the method name",
				},
				"new_name": {
					Type:        "string",
					Description: "Replacement method name",
				},
				"write": {
					Type:        "boolean",
					Description: "Apply the edits to disk instead of returning them",
				},
			},
			Required: []string{"file", "line", "column", "new_name"},
		},
	}, s.handleRenameMethod)

	s.server.AddTool(&mcp.Tool{
		Name:        "move_file",
		Description: "Plan the edits for moving or renaming a PHP file: namespace declaration, filename-driven class rename, and import rewrites across the workspace.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"old_path": {
					Type:        "string",
					Description: "Path the file is moving from",
				},
				"new_path": {
					Type:        "string",
					Description: "Path the file is moving to",
				},
				"write": {
					Type:        "boolean",
					Description: "Perform the physical move and apply the edits",
				},
			},
			Required: []string{"old_path", "new_path"},
		},
	}, s.handleMoveFile)

	s.server.AddTool(&mcp.Tool{
		Name:        "missing_imports",
		Description: "Report unresolved type references in a file, with ranked FQN suggestions for each.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"file": {
					Type:        "string",
					Description: "Path of the file to check",
				},
			},
			Required: []string{"file"},
		},
	}, s.handleMissingImports)

	s.server.AddTool(&mcp.Tool{
		Name:        "add_import",
		Description: "Insert a use statement for a fully qualified name, merging it into the file's sorted import block.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"file": {
					Type:        "string",
					Description: "Path of the file to edit",
				},
				"fqn": {
					Type:        "string",
					Description: "Fully qualified name to import",
				},
				"write": {
					Type:        "boolean",
					Description: "Apply the edit to disk instead of returning it",
				},
			},
			Required: []string{"file", "fqn"},
		},
	}, s.handleAddImport)

	s.server.AddTool(&mcp.Tool{
		Name:        "index_status",
		Description: "Report indexed file and symbol counts; optionally trigger a full rescan.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"rescan": {
					Type:        "boolean",
					Description: "Run a full workspace rescan before reporting",
				},
			},
		},
	}, s.handleIndexStatus)
}

type renameParams struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	NewName string `json:"new_name"`
	Write   bool   `json:"write"`
}

func (s *Server) handleRenameMethod(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params renameParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("invalid parameters: " + err.Error())
	}

	cursor := types.Position{Line: params.Line, Column: params.Column}
	edits, err := s.renamer.PlanRename(params.File, cursor, params.NewName)
	if err != nil {
		return createErrorResponse(err.Error())
	}
	return s.finishEdits(edits, params.Write)
}

type moveParams struct {
	OldPath string `json:"old_path"`
	NewPath string `json:"new_path"`
	Write   bool   `json:"write"`
}

func (s *Server) handleMoveFile(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params moveParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("invalid parameters: " + err.Error())
	}

	if params.Write {
		if err := os.Rename(params.OldPath, params.NewPath); err != nil {
			return createErrorResponse("move failed: " + err.Error())
		}
		s.scanner.Remove(params.OldPath)
	} else if content, ok := s.files.GetContent(params.OldPath); ok {
		// Preview without a physical move: stage the content at the new
		// path in memory only.
		s.files.SetContent(params.NewPath, content)
		defer s.files.Invalidate(params.NewPath)
	}

	plan, err := s.mover.PlanMove(params.OldPath, params.NewPath)
	if err != nil {
		return createErrorResponse(err.Error())
	}

	if !params.Write {
		return createJSONResponse(map[string]any{
			"oldFqn":      plan.OldFQN,
			"newFqn":      plan.NewFQN,
			"typeRenamed": plan.TypeRenamed,
			"edits":       plan.Edits,
		})
	}

	touched, err := refactor.Apply(s.files, plan.Edits)
	if err != nil {
		return createErrorResponse(err.Error())
	}
	touched = append(touched, params.NewPath)
	for _, path := range touched {
		if err := s.scanner.ScanPath(path); err != nil {
			debug.LogRefactor("rescan after move failed for %s: %v", path, err)
		}
	}
	return createJSONResponse(map[string]any{
		"oldFqn":       plan.OldFQN,
		"newFqn":       plan.NewFQN,
		"typeRenamed":  plan.TypeRenamed,
		"filesChanged": touched,
	})
}

type fileParams struct {
	File string `json:"file"`
}

func (s *Server) handleMissingImports(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params fileParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("invalid parameters: " + err.Error())
	}

	content, ok := s.files.GetContent(params.File)
	if !ok {
		return createErrorResponse("cannot read " + params.File)
	}
	diags := s.checker.Check(params.File, content)
	return createJSONResponse(map[string]any{
		"file":        params.File,
		"diagnostics": diags,
	})
}

type addImportParams struct {
	File  string `json:"file"`
	FQN   string `json:"fqn"`
	Write bool   `json:"write"`
}

func (s *Server) handleAddImport(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params addImportParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("invalid parameters: " + err.Error())
	}

	content, ok := s.files.GetContent(params.File)
	if !ok {
		return createErrorResponse("cannot read " + params.File)
	}
	edits, err := refactor.NormalizeEdits(refactor.PlanAddImport(params.File, content, params.FQN))
	if err != nil {
		return createErrorResponse(err.Error())
	}
	return s.finishEdits(edits, params.Write)
}

type statusParams struct {
	Rescan bool `json:"rescan"`
}

func (s *Server) handleIndexStatus(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params statusParams
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
			return createErrorResponse("invalid parameters: " + err.Error())
		}
	}

	if params.Rescan {
		if _, err := s.scanner.Rebuild(ctx, nil); err != nil {
			return createErrorResponse(err.Error())
		}
	}
	files, symbols := s.idx.Stats()
	return createJSONResponse(map[string]any{
		"root":    s.cfg.Project.Root,
		"files":   files,
		"symbols": symbols,
	})
}

// finishEdits either returns the planned edits or applies them and rescans
// the touched files.
func (s *Server) finishEdits(edits []types.EditOperation, write bool) (*mcp.CallToolResult, error) {
	if !write {
		return createJSONResponse(map[string]any{"edits": edits})
	}
	touched, err := refactor.Apply(s.files, edits)
	if err != nil {
		return createErrorResponse(err.Error())
	}
	for _, path := range touched {
		if err := s.scanner.ScanPath(path); err != nil {
			debug.LogRefactor("rescan after edit failed for %s: %v", path, err)
		}
	}
	return createJSONResponse(map[string]any{"filesChanged": touched})
}
