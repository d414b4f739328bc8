package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"mcpgate/internal/files"
	"mcpgate/internal/identity"
	"mcpgate/internal/upstream"
)

type apiCall struct {
	method  string
	path    string
	query   url.Values
	payload interface{}
}

type fakeAPI struct {
	mu       sync.Mutex
	calls    []apiCall
	response string
	err      error
}

func (f *fakeAPI) DoJSON(_ context.Context, method, path string, query url.Values, payload, out interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, apiCall{method: method, path: path, query: query, payload: payload})
	if f.err != nil {
		return f.err
	}
	if out != nil && f.response != "" {
		return json.Unmarshal([]byte(f.response), out)
	}
	return nil
}

func (f *fakeAPI) lastCall(t *testing.T) apiCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeIndexer struct {
	mu      sync.Mutex
	results []files.QueryResult
	lastTop int
}

func (f *fakeIndexer) Embed(context.Context, string, string, map[string]interface{}) error {
	return nil
}

func (f *fakeIndexer) DeleteEmbedding(context.Context, string) error { return nil }

func (f *fakeIndexer) Query(_ context.Context, req files.QueryRequest) (*files.QueryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastTop = req.TopK
	return &files.QueryResponse{Results: f.results}, nil
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}

func userCtx(userID string) context.Context {
	return identity.WithUserID(context.Background(), userID)
}

func TestNewServer_RegistersCatalog(t *testing.T) {
	store := files.NewStore(t.TempDir(), &fakeIndexer{})
	s := NewServer("test", NewCatalog(&fakeAPI{}, store))

	resp := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var names []string
	for _, n := range gjson.GetBytes(data, "result.tools.#.name").Array() {
		names = append(names, n.String())
	}
	expected := []string{
		"list_agents", "get_agent", "create_agent", "update_agent", "delete_agent",
		"list_agent_categories", "list_agent_tools", "get_models",
		"get_model_context_protocol_tools", "get_model_context_protocol_status", "get_model_context_protocol_info",
		"upload_file", "create_note", "list_files", "read_file", "modify_file", "delete_file",
		"search_files", "configure_obsidian_sync",
	}
	assert.ElementsMatch(t, expected, names)
}

func TestListAgents_DefaultsAndPaging(t *testing.T) {
	api := &fakeAPI{response: `{"data":[{"id":"agent_1"}]}`}
	c := NewCatalog(api, nil)

	result, err := c.handleListAgents(userCtx("u1"), callRequest("list_agents", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), `"agent_1"`)

	call := api.lastCall(t)
	assert.Equal(t, http.MethodGet, call.method)
	assert.Equal(t, "/agents", call.path)
	assert.Equal(t, "1", call.query.Get("page"))
	assert.Equal(t, "10", call.query.Get("limit"))

	_, err = c.handleListAgents(userCtx("u1"), callRequest("list_agents", map[string]interface{}{"page": 3.0, "limit": 25.0}))
	require.NoError(t, err)
	call = api.lastCall(t)
	assert.Equal(t, "3", call.query.Get("page"))
	assert.Equal(t, "25", call.query.Get("limit"))
}

func TestAgentByID_EscapesPath(t *testing.T) {
	api := &fakeAPI{response: `{}`}
	c := NewCatalog(api, nil)

	_, err := c.handleGetAgent(userCtx("u1"), callRequest("get_agent", map[string]interface{}{"agent_id": "agent/1"}))
	require.NoError(t, err)
	assert.Equal(t, "/agents/agent%2F1", api.lastCall(t).path)

	_, err = c.handleDeleteAgent(userCtx("u1"), callRequest("delete_agent", map[string]interface{}{"agent_id": "agent_2"}))
	require.NoError(t, err)
	call := api.lastCall(t)
	assert.Equal(t, http.MethodDelete, call.method)
	assert.Equal(t, "/agents/agent_2", call.path)
}

func TestAgentByID_MissingID(t *testing.T) {
	api := &fakeAPI{}
	c := NewCatalog(api, nil)

	result, err := c.handleGetAgent(userCtx("u1"), callRequest("get_agent", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Zero(t, api.callCount())
}

func TestCreateAgent_SendsOnlyProvidedFields(t *testing.T) {
	api := &fakeAPI{response: `{"id":"agent_new"}`}
	c := NewCatalog(api, nil)

	result, err := c.handleCreateAgent(userCtx("u1"), callRequest("create_agent", map[string]interface{}{
		"name":     "Helper",
		"provider": "openai",
		"model":    "gpt-4",
		"tools":    []interface{}{"file_search"},
		"category": nil,
		"unknown":  "dropped",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	call := api.lastCall(t)
	assert.Equal(t, http.MethodPost, call.method)
	assert.Equal(t, "/agents", call.path)
	assert.Equal(t, map[string]interface{}{
		"name":     "Helper",
		"provider": "openai",
		"model":    "gpt-4",
		"tools":    []interface{}{"file_search"},
	}, call.payload)
}

func TestCreateAgent_RequiresProviderAndModel(t *testing.T) {
	api := &fakeAPI{}
	c := NewCatalog(api, nil)

	result, err := c.handleCreateAgent(userCtx("u1"), callRequest("create_agent", map[string]interface{}{"provider": "openai"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "model")
	assert.Zero(t, api.callCount())
}

func TestUpdateAgent(t *testing.T) {
	api := &fakeAPI{response: `{"id":"agent_1","name":"Renamed"}`}
	c := NewCatalog(api, nil)

	result, err := c.handleUpdateAgent(userCtx("u1"), callRequest("update_agent", map[string]interface{}{
		"agent_id":        "agent_1",
		"name":            "Renamed",
		"isCollaborative": true,
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	call := api.lastCall(t)
	assert.Equal(t, http.MethodPatch, call.method)
	assert.Equal(t, "/agents/agent_1", call.path)
	assert.Equal(t, map[string]interface{}{"name": "Renamed", "isCollaborative": true}, call.payload)
}

func TestUpdateAgent_NoFields(t *testing.T) {
	api := &fakeAPI{}
	c := NewCatalog(api, nil)

	result, err := c.handleUpdateAgent(userCtx("u1"), callRequest("update_agent", map[string]interface{}{"agent_id": "agent_1"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "no update fields")
	assert.Zero(t, api.callCount())
}

func TestUpstreamErrors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		contains    string
		notContains string
	}{
		{
			name:     "expired credential asks to reauthorize",
			err:      &upstream.StatusError{Status: http.StatusUnauthorized, Body: "jwt expired"},
			contains: "Reconnect",
		},
		{
			name:     "missing credential asks to reauthorize",
			err:      upstream.ErrNoCredential,
			contains: "Reconnect",
		},
		{
			name:        "server error is reported",
			err:         &upstream.StatusError{Status: http.StatusInternalServerError, Body: "boom"},
			contains:    "500",
			notContains: "Reconnect",
		},
		{
			name:     "transport error is reported",
			err:      errors.New("dial tcp: connection refused"),
			contains: "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCatalog(&fakeAPI{err: tt.err}, nil)
			result, err := c.handleListAgentTools(userCtx("u1"), callRequest("list_agent_tools", nil))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			text := resultText(t, result)
			assert.Contains(t, text, tt.contains)
			if tt.notContains != "" {
				assert.NotContains(t, text, tt.notContains)
			}
		})
	}
}

func TestInfoTools_Paths(t *testing.T) {
	api := &fakeAPI{response: `{"ok":true}`}
	s := NewServer("test", NewCatalog(api, nil))

	paths := map[string]string{
		"get_models":                        "/models",
		"get_model_context_protocol_tools":  "/mcp/tools",
		"get_model_context_protocol_status": "/mcp/status",
		"get_model_context_protocol_info":   "/mcp/info",
	}
	for name, path := range paths {
		msg := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"` + name + `","arguments":{}}}`
		resp := s.HandleMessage(userCtx("u1"), json.RawMessage(msg))
		data, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.False(t, gjson.GetBytes(data, "result.isError").Bool(), name)
		assert.Equal(t, path, api.lastCall(t).path, name)
	}
}

func TestFileTools_RequireIdentity(t *testing.T) {
	c := NewCatalog(nil, files.NewStore(t.TempDir(), &fakeIndexer{}))

	result, err := c.handleListFiles(context.Background(), callRequest("list_files", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Reconnect")

	result, err = c.handleListFiles(userCtx("{{LIBRECHAT_USER_ID}}"), callRequest("list_files", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestFileTools_Lifecycle(t *testing.T) {
	c := NewCatalog(nil, files.NewStore(t.TempDir(), &fakeIndexer{}))
	ctx := userCtx("user_a")

	result, err := c.handleListFiles(ctx, callRequest("list_files", nil))
	require.NoError(t, err)
	assert.Equal(t, "No files found in your storage.", resultText(t, result))

	result, err = c.handleUploadFile(ctx, callRequest("upload_file", map[string]interface{}{"filename": "a.txt", "content": "hello"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "Successfully uploaded 'a.txt' (5 bytes)", resultText(t, result))

	result, err = c.handleUploadFile(ctx, callRequest("upload_file", map[string]interface{}{"filename": "a.txt", "content": "again"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "already exists")

	result, err = c.handleReadFile(ctx, callRequest("read_file", map[string]interface{}{"filename": "a.txt"}))
	require.NoError(t, err)
	assert.Equal(t, "hello", resultText(t, result))

	result, err = c.handleModifyFile(ctx, callRequest("modify_file", map[string]interface{}{"filename": "a.txt", "content": "changed"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	result, err = c.handleReadFile(ctx, callRequest("read_file", map[string]interface{}{"filename": "a.txt"}))
	require.NoError(t, err)
	assert.Equal(t, "changed", resultText(t, result))

	result, err = c.handleListFiles(ctx, callRequest("list_files", nil))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.True(t, strings.HasPrefix(text, "Found 1 file(s):"))
	assert.Contains(t, text, "- a.txt\n  Size: 7 bytes")

	result, err = c.handleDeleteFile(ctx, callRequest("delete_file", map[string]interface{}{"filename": "a.txt"}))
	require.NoError(t, err)
	assert.Equal(t, "Successfully deleted 'a.txt'", resultText(t, result))

	result, err = c.handleDeleteFile(ctx, callRequest("delete_file", map[string]interface{}{"filename": "a.txt"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "not found")

	result, err = c.handleModifyFile(ctx, callRequest("modify_file", map[string]interface{}{"filename": "missing.txt", "content": "x"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Use upload_file")
}

func TestFileTools_UsersAreIsolated(t *testing.T) {
	c := NewCatalog(nil, files.NewStore(t.TempDir(), &fakeIndexer{}))

	_, err := c.handleUploadFile(userCtx("user_a"), callRequest("upload_file", map[string]interface{}{"filename": "secret.txt", "content": "a"}))
	require.NoError(t, err)

	result, err := c.handleReadFile(userCtx("user_b"), callRequest("read_file", map[string]interface{}{"filename": "secret.txt"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestCreateNote(t *testing.T) {
	c := NewCatalog(nil, files.NewStore(t.TempDir(), &fakeIndexer{}))
	ctx := userCtx("user_a")

	result, err := c.handleCreateNote(ctx, callRequest("create_note", map[string]interface{}{"title": "Meeting notes!", "content": "agenda"}))
	require.NoError(t, err)
	assert.Equal(t, "Successfully created note 'Meeting_notes.md'", resultText(t, result))

	result, err = c.handleReadFile(ctx, callRequest("read_file", map[string]interface{}{"filename": "Meeting_notes.md"}))
	require.NoError(t, err)
	assert.Equal(t, "# Meeting notes!\n\nagenda", resultText(t, result))
}

func TestSearchFiles(t *testing.T) {
	long := strings.Repeat("x", 300)
	indexer := &fakeIndexer{results: []files.QueryResult{
		{Text: long, Score: 0.91234, Metadata: map[string]interface{}{"filename": "a.md"}},
		{Text: "short", Score: 0.5},
	}}
	c := NewCatalog(nil, files.NewStore(t.TempDir(), indexer))

	result, err := c.handleSearchFiles(userCtx("user_a"), callRequest("search_files", map[string]interface{}{"query": "notes", "max_results": 2.0}))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "Found 2 result(s) for 'notes':")
	assert.Contains(t, text, "1. a.md (score: 0.912)\n   "+strings.Repeat("x", 200)+"...")
	assert.NotContains(t, text, strings.Repeat("x", 201))
	assert.Contains(t, text, "2. unknown (score: 0.500)")
	assert.Equal(t, 2, indexer.lastTop)

	indexer.mu.Lock()
	indexer.results = nil
	indexer.mu.Unlock()
	result, err = c.handleSearchFiles(userCtx("user_a"), callRequest("search_files", map[string]interface{}{"query": "nothing"}))
	require.NoError(t, err)
	assert.Equal(t, "No results found for query: 'nothing'", resultText(t, result))
	assert.Equal(t, defaultSearchResults, indexer.lastTop)
}

func TestConfigureSync(t *testing.T) {
	store := files.NewStore(t.TempDir(), &fakeIndexer{})
	c := NewCatalog(nil, store)
	ctx := userCtx("user_a")

	result, err := c.handleConfigureSync(ctx, callRequest("configure_obsidian_sync", nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "No Obsidian sync configuration found.")

	result, err = c.handleConfigureSync(ctx, callRequest("configure_obsidian_sync", map[string]interface{}{
		"repo_url": "https://git.example.com/vault.git",
		"token":    "pat",
	}))
	require.NoError(t, err)
	assert.Equal(t, "Successfully configured Obsidian Sync for repository: https://git.example.com/vault.git", resultText(t, result))

	cfg, err := store.SyncStatus("user_a")
	require.NoError(t, err)
	assert.Equal(t, "main", cfg.Branch)
	assert.False(t, cfg.AutoConfigured)

	result, err = c.handleConfigureSync(ctx, callRequest("configure_obsidian_sync", nil))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "already configured for repository: https://git.example.com/vault.git")
	assert.Contains(t, text, "manually configured")
}
