package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"mcpgate/internal/files"
	"mcpgate/internal/identity"
	"mcpgate/internal/upstream"
	"mcpgate/pkg/logging"
)

// ServerName is the name announced to MCP clients.
const ServerName = "LibreChat MCP Server"

const reauthorizeMessage = "LibreChat authorization is missing or expired. Reconnect the MCP server to sign in again."

// API is the upstream surface the catalog needs.
type API interface {
	DoJSON(ctx context.Context, method, path string, query url.Values, payload, out interface{}) error
}

// FileStore is the per-user storage surface the catalog needs.
type FileStore interface {
	Upload(ctx context.Context, userID, filename, content string) (string, error)
	CreateNote(ctx context.Context, userID, title, content string) (string, error)
	List(userID string) ([]files.FileInfo, error)
	Read(userID, filename string) (string, error)
	Modify(ctx context.Context, userID, filename, content string) error
	Delete(ctx context.Context, userID, filename string) error
	Search(ctx context.Context, userID, query string, maxResults int) ([]files.SearchHit, error)
	SyncStatus(userID string) (*files.SyncConfig, error)
	ConfigureSync(userID, repoURL, token, branch string) error
}

// Catalog holds the dependencies shared by all tool handlers.
type Catalog struct {
	api   API
	files FileStore
}

// NewCatalog creates a catalog. Either dependency may be nil, in which case
// the corresponding tools are not registered.
func NewCatalog(api API, store FileStore) *Catalog {
	return &Catalog{api: api, files: store}
}

// NewServer creates the MCP server and registers the catalog on it.
func NewServer(version string, catalog *Catalog) *server.MCPServer {
	s := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(true),
	)
	catalog.Register(s)
	return s
}

// Register adds every tool of the catalog to s.
func (c *Catalog) Register(s *server.MCPServer) {
	if c.api != nil {
		c.registerAgentTools(s)
		c.registerInfoTools(s)
	}
	if c.files != nil {
		c.registerFileTools(s)
	}
}

// callJSON runs an upstream JSON call and renders the decoded response as
// indented JSON text.
func (c *Catalog) callJSON(ctx context.Context, tool, method, path string, query url.Values, payload interface{}) (*mcp.CallToolResult, error) {
	var out interface{}
	if err := c.api.DoJSON(ctx, method, path, query, payload, &out); err != nil {
		return toolError(tool, err), nil
	}
	return jsonResult(tool, out), nil
}

func jsonResult(tool string, v interface{}) *mcp.CallToolResult {
	if v == nil {
		return mcp.NewToolResultText("{}")
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: failed to encode result: %v", tool, err))
	}
	return mcp.NewToolResultText(string(data))
}

// toolError converts err into a tool error result.
func toolError(tool string, err error) *mcp.CallToolResult {
	if isAuthError(err) {
		logging.Debug("Tools", "%s needs authorization: %v", tool, err)
		return mcp.NewToolResultError(reauthorizeMessage)
	}
	logging.Warn("Tools", "%s failed: %v", tool, err)
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", tool, err))
}

func isAuthError(err error) bool {
	return upstream.IsAuthError(err) ||
		errors.Is(err, identity.ErrNoIdentity) ||
		errors.Is(err, identity.ErrBlank) ||
		errors.Is(err, identity.ErrPlaceholder)
}

// currentUser returns the validated user bound to ctx.
func currentUser(ctx context.Context) (string, error) {
	userID, err := identity.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	if err := identity.Validate(userID); err != nil {
		return "", err
	}
	return userID, nil
}
