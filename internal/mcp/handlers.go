package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/structidx/sci/internal/debug"
)

// SearchCodeParams are the arguments for the search_code tool.
type SearchCodeParams struct {
	Query string `json:"query"`
	Type  string `json:"type,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// FindRouteParams are the arguments for the find_route tool.
type FindRouteParams struct {
	Path string `json:"path"`
}

// FindNamedParams are the arguments for find_model and find_table.
type FindNamedParams struct {
	Name string `json:"name"`
}

// ListComponentsParams are the arguments for the list_components tool.
type ListComponentsParams struct {
	Type  string `json:"type"`
	Limit int    `json:"limit,omitempty"`
}

// ExplainFileParams are the arguments for the explain_file tool.
type ExplainFileParams struct {
	FilePath string `json:"file_path"`
}

func (s *Server) handleSearchCode(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Manual deserialization keeps unknown fields tolerated and error
	// messages under our control.
	var params SearchCodeParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("search_code", fmt.Errorf("invalid parameters: %w", err))
	}
	if params.Query == "" {
		return createErrorResponse("search_code", fmt.Errorf("query is required"))
	}

	debug.LogQuery("search_code query=%q type=%q limit=%d", params.Query, params.Type, params.Limit)

	results, err := s.engine.SearchCode(ctx, params.Query, params.Type, params.Limit)
	if err != nil {
		return createErrorResponse("search_code", err)
	}

	return createJSONResponse(map[string]interface{}{
		"query":   params.Query,
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) handleFindRoute(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params FindRouteParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("find_route", fmt.Errorf("invalid parameters: %w", err))
	}
	if params.Path == "" {
		return createErrorResponse("find_route", fmt.Errorf("path is required"))
	}

	routes, err := s.engine.FindRoute(ctx, params.Path)
	if err != nil {
		return createErrorResponse("find_route", err)
	}

	return createJSONResponse(map[string]interface{}{
		"query":  params.Path,
		"count":  len(routes),
		"routes": routes,
	})
}

func (s *Server) handleFindModel(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params FindNamedParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("find_model", fmt.Errorf("invalid parameters: %w", err))
	}
	if params.Name == "" {
		return createErrorResponse("find_model", fmt.Errorf("name is required"))
	}

	models, err := s.engine.FindModel(ctx, params.Name)
	if err != nil {
		return createErrorResponse("find_model", err)
	}

	return createJSONResponse(map[string]interface{}{
		"query":  params.Name,
		"count":  len(models),
		"models": models,
	})
}

func (s *Server) handleFindTable(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params FindNamedParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("find_table", fmt.Errorf("invalid parameters: %w", err))
	}
	if params.Name == "" {
		return createErrorResponse("find_table", fmt.Errorf("name is required"))
	}

	tables, err := s.engine.FindTable(ctx, params.Name)
	if err != nil {
		return createErrorResponse("find_table", err)
	}

	return createJSONResponse(map[string]interface{}{
		"query":  params.Name,
		"count":  len(tables),
		"tables": tables,
	})
}

func (s *Server) handleListComponents(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params ListComponentsParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("list_components", fmt.Errorf("invalid parameters: %w", err))
	}
	if params.Type == "" {
		return createErrorResponse("list_components", fmt.Errorf("type is required"))
	}

	components, err := s.engine.ListComponents(ctx, params.Type, params.Limit)
	if err != nil {
		return createErrorResponse("list_components", err)
	}

	return createJSONResponse(map[string]interface{}{
		"type":       params.Type,
		"count":      len(components),
		"components": components,
	})
}

func (s *Server) handleExplainFile(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params ExplainFileParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("explain_file", fmt.Errorf("invalid parameters: %w", err))
	}
	if params.FilePath == "" {
		return createErrorResponse("explain_file", fmt.Errorf("file_path is required"))
	}

	explanation, err := s.engine.ExplainFile(ctx, params.FilePath)
	if err != nil {
		return createErrorResponse("explain_file", err)
	}

	return createJSONResponse(explanation)
}

func (s *Server) handleRebuildIndex(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	debug.LogIndexing("rebuild_index requested")

	stats, err := s.engine.Rebuild(ctx)
	if err != nil {
		return createErrorResponse("rebuild_index", err)
	}

	return createJSONResponse(map[string]interface{}{
		"success": true,
		"stats":   stats,
	})
}
