package mcp

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/structidx/sci/internal/config"
	"github.com/structidx/sci/internal/debug"
	"github.com/structidx/sci/internal/query"
	"github.com/structidx/sci/internal/snapshot"
	"github.com/structidx/sci/internal/types"
	"github.com/structidx/sci/internal/version"
)

// Server exposes the structural index over MCP stdio.
type Server struct {
	cfg    *config.Config
	cache  *snapshot.Cache
	engine *query.Engine
	server *mcp.Server
}

// NewServer creates an MCP server over the given snapshot cache. A
// persisted index is loaded eagerly when present; otherwise the first
// tool call triggers a build.
func NewServer(cache *snapshot.Cache, cfg *config.Config) *Server {
	s := &Server{
		cfg:    cfg,
		cache:  cache,
		engine: query.New(cache, cfg),
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "sci-mcp-server",
		Version: version.Version,
	}, nil)
	s.registerTools()

	if err := cache.LoadFromDisk(); err != nil {
		debug.LogMCP("No persisted index loaded: %v", err)
	}

	return s
}

// Run serves MCP requests on stdio until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	debug.LogMCP("Starting MCP server with stdio transport (root: %s)", s.cfg.Project.Root)
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// registerTools registers all MCP tools with the server
func (s *Server) registerTools() {
	kindDesc := "Component type to filter by. Valid types: " + joinKinds()

	s.server.AddTool(&mcp.Tool{
		Name:        "search_code",
		Description: "Search indexed components (functions, classes, routes, models, tables, views, doc sections) by name, docstring, or snippet. Ranked results with scores.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {
					Type:        "string",
					Description: "Search text matched against names, summaries, and snippets",
				},
				"type": {
					Type:        "string",
					Description: kindDesc,
				},
				"limit": {
					Type:        "integer",
					Description: "Maximum results to return",
				},
			},
			Required: []string{"query"},
		},
	}, s.handleSearchCode)

	s.server.AddTool(&mcp.Tool{
		Name:        "find_route",
		Description: "Locate HTTP route handlers by path template or handler function name. Exact matches first, substring fallback.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": {
					Type:        "string",
					Description: "Route path template (e.g. /users/<int:user_id>) or handler name",
				},
			},
			Required: []string{"path"},
		},
	}, s.handleFindRoute)

	s.server.AddTool(&mcp.Tool{
		Name:        "find_model",
		Description: "Locate ORM model classes by name. Case-insensitive exact match first, substring fallback.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name": {
					Type:        "string",
					Description: "Model class name",
				},
			},
			Required: []string{"name"},
		},
	}, s.handleFindModel)

	s.server.AddTool(&mcp.Tool{
		Name:        "find_table",
		Description: "Locate SQL tables by name, falling back to views when no table matches. Case-insensitive exact match first, substring fallback.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name": {
					Type:        "string",
					Description: "Table or view name",
				},
			},
			Required: []string{"name"},
		},
	}, s.handleFindTable)

	s.server.AddTool(&mcp.Tool{
		Name:        "list_components",
		Description: "List all components of one type in file order.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"type": {
					Type:        "string",
					Description: kindDesc,
				},
				"limit": {
					Type:        "integer",
					Description: "Maximum results to return",
				},
			},
			Required: []string{"type"},
		},
	}, s.handleListComponents)

	s.server.AddTool(&mcp.Tool{
		Name:        "explain_file",
		Description: "Summarize a single indexed file: module summary, imports, and its components grouped by type.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"file_path": {
					Type:        "string",
					Description: "File path relative to the indexed root (e.g. app/models.py)",
				},
			},
			Required: []string{"file_path"},
		},
	}, s.handleExplainFile)

	s.server.AddTool(&mcp.Tool{
		Name:        "rebuild_index",
		Description: "Rebuild the index from the current source tree and persist it. Returns component counts.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}, s.handleRebuildIndex)
}

func joinKinds() string {
	out := ""
	for i, k := range types.AllKinds {
		if i > 0 {
			out += ", "
		}
		out += string(k)
	}
	return out
}
