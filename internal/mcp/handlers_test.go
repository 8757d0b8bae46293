package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structidx/sci/internal/config"
	"github.com/structidx/sci/internal/snapshot"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"app.py": `"""Demo app."""

from flask import Flask


@app.route("/items/<int:item_id>")
def get_item(item_id):
    """Fetch one item."""
    return None


class Item(db.Model):
    """A stock item."""

    id = db.Column(db.Integer, primary_key=True)
`,
		"schema.sql": `CREATE TABLE items (id INTEGER PRIMARY KEY);
`,
	}
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}

	cfg := config.Default(root)
	return NewServer(snapshot.NewCache(cfg), cfg)
}

func callTool(t *testing.T, handler func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error), args string) *mcp.CallToolResult {
	t.Helper()
	result, err := handler(context.Background(), &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{
		Arguments: json.RawMessage(args),
	}})
	require.NoError(t, err, "handlers must report failures inside the result, not as protocol errors")
	return result
}

func decodeResult(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &payload))
	return payload
}

func TestHandleSearchCode(t *testing.T) {
	s := testServer(t)

	result := callTool(t, s.handleSearchCode, `{"query": "get_item"}`)
	require.False(t, result.IsError)

	payload := decodeResult(t, result)
	require.NotZero(t, payload["count"])

	results := payload["results"].([]interface{})
	first := results[0].(map[string]interface{})
	component := first["component"].(map[string]interface{})
	assert.Equal(t, "get_item", component["name"])
	assert.Equal(t, "route", component["kind"])
}

func TestHandleSearchCodeUnknownType(t *testing.T) {
	s := testServer(t)

	result := callTool(t, s.handleSearchCode, `{"query": "item", "type": "widget"}`)
	require.True(t, result.IsError)

	payload := decodeResult(t, result)
	assert.Equal(t, "search_code", payload["operation"])
	assert.Equal(t, false, payload["success"])
}

func TestHandleSearchCodeMissingQuery(t *testing.T) {
	s := testServer(t)

	result := callTool(t, s.handleSearchCode, `{}`)
	assert.True(t, result.IsError)
}

func TestHandleSearchCodeMalformedArguments(t *testing.T) {
	s := testServer(t)

	result := callTool(t, s.handleSearchCode, `{"query": 42}`)
	assert.True(t, result.IsError)
}

func TestHandleFindRoute(t *testing.T) {
	s := testServer(t)

	result := callTool(t, s.handleFindRoute, `{"path": "/items/<int:item_id>"}`)
	require.False(t, result.IsError)

	payload := decodeResult(t, result)
	assert.Equal(t, float64(1), payload["count"])
}

func TestHandleFindModel(t *testing.T) {
	s := testServer(t)

	result := callTool(t, s.handleFindModel, `{"name": "Item"}`)
	require.False(t, result.IsError)

	payload := decodeResult(t, result)
	models := payload["models"].([]interface{})
	require.Len(t, models, 1)

	model := models[0].(map[string]interface{})
	assert.Equal(t, "model", model["kind"])
	assert.Equal(t, "Item", model["name"])
}

func TestHandleFindTable(t *testing.T) {
	s := testServer(t)

	result := callTool(t, s.handleFindTable, `{"name": "items"}`)
	require.False(t, result.IsError)

	payload := decodeResult(t, result)
	assert.Equal(t, float64(1), payload["count"])
}

func TestHandleListComponents(t *testing.T) {
	s := testServer(t)

	result := callTool(t, s.handleListComponents, `{"type": "route"}`)
	require.False(t, result.IsError)
	payload := decodeResult(t, result)
	assert.Equal(t, float64(1), payload["count"])

	result = callTool(t, s.handleListComponents, `{"type": "widget"}`)
	assert.True(t, result.IsError)
}

func TestHandleExplainFile(t *testing.T) {
	s := testServer(t)

	result := callTool(t, s.handleExplainFile, `{"file_path": "app.py"}`)
	require.False(t, result.IsError)

	payload := decodeResult(t, result)
	assert.Equal(t, "Demo app.", payload["summary"])

	result = callTool(t, s.handleExplainFile, `{"file_path": "missing.py"}`)
	assert.True(t, result.IsError)
}

func TestHandleRebuildIndex(t *testing.T) {
	s := testServer(t)

	result := callTool(t, s.handleRebuildIndex, `{}`)
	require.False(t, result.IsError)

	payload := decodeResult(t, result)
	assert.Equal(t, true, payload["success"])

	stats := payload["stats"].(map[string]interface{})
	assert.NotZero(t, stats["total_components"])

	// The rebuild persists the index to disk.
	_, err := os.Stat(s.cfg.IndexPath())
	assert.NoError(t, err)
}
