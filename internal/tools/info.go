package tools

import (
	"context"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// infoTools are read-only upstream endpoints exposed one to one.
var infoTools = []struct {
	name        string
	description string
	path        string
}{
	{"get_models", "Get a list of all models available on the server", "/models"},
	{"get_model_context_protocol_tools", "Get a list of all Model Context Protocol tools available on the server", "/mcp/tools"},
	{"get_model_context_protocol_status", "Get the status of the Model Context Protocol servers", "/mcp/status"},
	{"get_model_context_protocol_info", "Get general information about the Model Context Protocol servers", "/mcp/info"},
}

func (c *Catalog) registerInfoTools(s *server.MCPServer) {
	for _, t := range infoTools {
		name, path := t.name, t.path
		s.AddTool(mcp.NewTool(name, mcp.WithDescription(t.description)),
			func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return c.callJSON(ctx, name, http.MethodGet, path, nil, nil)
			})
	}
}
