package tools

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// agentFields lists the agent attributes accepted by create and update, in
// the order they are documented.
var agentFields = []string{
	"name",
	"description",
	"instructions",
	"avatar",
	"model_parameters",
	"tools",
	"agent_ids",
	"edges",
	"end_after_tools",
	"hide_sequential_outputs",
	"artifacts",
	"recursion_limit",
	"conversation_starters",
	"tool_resources",
	"support_contact",
	"category",
	"provider",
	"model",
	"projectIds",
	"removeProjectIds",
	"isCollaborative",
}

func stringItems() mcp.PropertyOption {
	return mcp.Items(map[string]interface{}{"type": "string"})
}

// agentFieldOptions describes the agent attributes. provider and model are
// required when creating.
func agentFieldOptions(creating bool) []mcp.ToolOption {
	required := func(desc string) []mcp.PropertyOption {
		opts := []mcp.PropertyOption{mcp.Description(desc)}
		if creating {
			opts = append(opts, mcp.Required())
		}
		return opts
	}
	return []mcp.ToolOption{
		mcp.WithString("name", mcp.Description("Agent name")),
		mcp.WithString("description", mcp.Description("Agent description")),
		mcp.WithString("instructions", mcp.Description("System instructions for the agent")),
		mcp.WithObject("avatar", mcp.Description("Avatar object with 'filepath' and 'source'")),
		mcp.WithObject("model_parameters", mcp.Description("Model-specific parameters")),
		mcp.WithArray("tools", mcp.Description("Tool names available to the agent"), stringItems()),
		mcp.WithArray("agent_ids", mcp.Description("Deprecated, use 'edges' instead"), stringItems()),
		mcp.WithArray("edges", mcp.Description("Graph edges for agent handoffs")),
		mcp.WithBoolean("end_after_tools", mcp.Description("End the conversation after tools run")),
		mcp.WithBoolean("hide_sequential_outputs", mcp.Description("Hide outputs from sequential tool runs")),
		mcp.WithString("artifacts", mcp.Description("Artifacts setting")),
		mcp.WithNumber("recursion_limit", mcp.Description("Maximum recursion depth for the agent")),
		mcp.WithArray("conversation_starters", mcp.Description("Conversation starter prompts"), stringItems()),
		mcp.WithObject("tool_resources", mcp.Description("Tool resources")),
		mcp.WithObject("support_contact", mcp.Description("Support contact info (name, email)")),
		mcp.WithString("category", mcp.Description("Agent category")),
		mcp.WithString("provider", required("Provider name, for example 'openai'")...),
		mcp.WithString("model", required("Model name")...),
		mcp.WithArray("projectIds", mcp.Description("Project IDs to add"), stringItems()),
		mcp.WithArray("removeProjectIds", mcp.Description("Project IDs to remove"), stringItems()),
		mcp.WithBoolean("isCollaborative", mcp.Description("Collaborative flag")),
	}
}

func (c *Catalog) registerAgentTools(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("list_agents",
		mcp.WithDescription("List agents with pagination"),
		mcp.WithNumber("page", mcp.Description("Page number to retrieve"), mcp.DefaultNumber(1)),
		mcp.WithNumber("limit", mcp.Description("Number of agents per page"), mcp.DefaultNumber(10)),
	), c.handleListAgents)

	s.AddTool(mcp.NewTool("get_agent",
		mcp.WithDescription("Get information about a specific agent by ID"),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("The ID of the agent")),
	), c.handleGetAgent)

	createOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Create a new agent. provider and model are required; only the fields you pass are sent."),
	}, agentFieldOptions(true)...)
	s.AddTool(mcp.NewTool("create_agent", createOpts...), c.handleCreateAgent)

	updateOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Update an existing agent. Use list_agents to find IDs and get_agent to see the current configuration."),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("The ID of the agent to update")),
	}, agentFieldOptions(false)...)
	s.AddTool(mcp.NewTool("update_agent", updateOpts...), c.handleUpdateAgent)

	s.AddTool(mcp.NewTool("delete_agent",
		mcp.WithDescription("Delete an agent by ID"),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("The ID of the agent to delete")),
	), c.handleDeleteAgent)

	s.AddTool(mcp.NewTool("list_agent_categories",
		mcp.WithDescription("List all agent categories with counts and descriptions"),
	), c.handleListAgentCategories)

	s.AddTool(mcp.NewTool("list_agent_tools",
		mcp.WithDescription("List all tools available to agents"),
	), c.handleListAgentTools)
}

func (c *Catalog) handleListAgents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(request.GetInt("page", 1)))
	query.Set("limit", strconv.Itoa(request.GetInt("limit", 10)))
	return c.callJSON(ctx, "list_agents", http.MethodGet, "/agents", query, nil)
}

func (c *Catalog) handleGetAgent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, errResult := agentPath(request)
	if errResult != nil {
		return errResult, nil
	}
	return c.callJSON(ctx, "get_agent", http.MethodGet, path, nil, nil)
}

func (c *Catalog) handleCreateAgent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fields := providedAgentFields(request.GetArguments())
	for _, name := range []string{"provider", "model"} {
		if _, ok := fields[name]; !ok {
			return mcp.NewToolResultError("create_agent: '" + name + "' is required"), nil
		}
	}
	return c.callJSON(ctx, "create_agent", http.MethodPost, "/agents", nil, fields)
}

func (c *Catalog) handleUpdateAgent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, errResult := agentPath(request)
	if errResult != nil {
		return errResult, nil
	}
	fields := providedAgentFields(request.GetArguments())
	if len(fields) == 0 {
		return mcp.NewToolResultError("update_agent: no update fields provided. Specify at least one field besides agent_id, for example name."), nil
	}
	return c.callJSON(ctx, "update_agent", http.MethodPatch, path, nil, fields)
}

func (c *Catalog) handleDeleteAgent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, errResult := agentPath(request)
	if errResult != nil {
		return errResult, nil
	}
	return c.callJSON(ctx, "delete_agent", http.MethodDelete, path, nil, nil)
}

func (c *Catalog) handleListAgentCategories(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.callJSON(ctx, "list_agent_categories", http.MethodGet, "/agents/categories", nil, nil)
}

func (c *Catalog) handleListAgentTools(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.callJSON(ctx, "list_agent_tools", http.MethodGet, "/agents/tools", nil, nil)
}

// agentPath returns /agents/{agent_id} or a tool error result.
func agentPath(request mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	id, err := request.RequireString("agent_id")
	if err != nil || strings.TrimSpace(id) == "" {
		return "", mcp.NewToolResultError("agent_id is required")
	}
	return "/agents/" + url.PathEscape(id), nil
}

// providedAgentFields keeps the known agent attributes that were passed with
// a non-null value.
func providedAgentFields(args map[string]interface{}) map[string]interface{} {
	fields := make(map[string]interface{})
	for _, name := range agentFields {
		if v, ok := args[name]; ok && v != nil {
			fields[name] = v
		}
	}
	return fields
}
