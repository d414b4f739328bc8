package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"mcpgate/internal/files"
	pkgstrings "mcpgate/pkg/strings"
)

const defaultSearchResults = 5

const syncHelp = "To configure, either:\n" +
	"1. Set customUserVars in UI settings (OBSIDIAN_REPO_URL, OBSIDIAN_TOKEN, OBSIDIAN_BRANCH) - recommended\n" +
	"2. Provide repo_url and token parameters to this tool"

func (c *Catalog) registerFileTools(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("upload_file",
		mcp.WithDescription("Upload a text file to your storage and index it for semantic search"),
		mcp.WithString("filename", mcp.Required(), mcp.Description("Name of the file to create")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Text content of the file")),
	), c.handleUploadFile)

	s.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a markdown note with a title header"),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title, also used for the filename")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown body of the note")),
	), c.handleCreateNote)

	s.AddTool(mcp.NewTool("list_files",
		mcp.WithDescription("List all files in your storage"),
	), c.handleListFiles)

	s.AddTool(mcp.NewTool("read_file",
		mcp.WithDescription("Read the content of a file in your storage"),
		mcp.WithString("filename", mcp.Required(), mcp.Description("Name of the file to read")),
	), c.handleReadFile)

	s.AddTool(mcp.NewTool("modify_file",
		mcp.WithDescription("Replace the content of an existing file and re-index it"),
		mcp.WithString("filename", mcp.Required(), mcp.Description("Name of the file to modify")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New content of the file")),
	), c.handleModifyFile)

	s.AddTool(mcp.NewTool("delete_file",
		mcp.WithDescription("Delete a file from your storage and the search index"),
		mcp.WithString("filename", mcp.Required(), mcp.Description("Name of the file to delete")),
	), c.handleDeleteFile)

	s.AddTool(mcp.NewTool("search_files",
		mcp.WithDescription("Semantic search over your files"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
		mcp.WithNumber("max_results", mcp.Description("Maximum number of results"), mcp.DefaultNumber(defaultSearchResults)),
	), c.handleSearchFiles)

	s.AddTool(mcp.NewTool("configure_obsidian_sync",
		mcp.WithDescription("Show or update the Git sync configuration for your Obsidian vault. Without repo_url and token the current status is returned."),
		mcp.WithString("repo_url", mcp.Description("HTTP(S) URL of the Git repository")),
		mcp.WithString("token", mcp.Description("Personal access token")),
		mcp.WithString("branch", mcp.Description("Branch to sync"), mcp.DefaultString("main")),
	), c.handleConfigureSync)
}

func (c *Catalog) handleUploadFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return toolError("upload_file", err), nil
	}
	filename, err := request.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content := request.GetString("content", "")

	if _, err := c.files.Upload(ctx, userID, filename, content); err != nil {
		if errors.Is(err, files.ErrExists) {
			return mcp.NewToolResultError(fmt.Sprintf("File '%s' already exists. Use modify_file to update it.", filename)), nil
		}
		return toolError("upload_file", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Successfully uploaded '%s' (%d bytes)", filename, len(content))), nil
}

func (c *Catalog) handleCreateNote(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return toolError("create_note", err), nil
	}
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	filename, err := c.files.CreateNote(ctx, userID, title, request.GetString("content", ""))
	if err != nil {
		if errors.Is(err, files.ErrExists) {
			return mcp.NewToolResultError(fmt.Sprintf("A note named '%s' already exists. Use modify_file to update it.", files.NoteFilename(title))), nil
		}
		return toolError("create_note", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Successfully created note '%s'", filename)), nil
}

func (c *Catalog) handleListFiles(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return toolError("list_files", err), nil
	}
	list, err := c.files.List(userID)
	if err != nil {
		return toolError("list_files", err), nil
	}
	if len(list) == 0 {
		return mcp.NewToolResultText("No files found in your storage."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d file(s):\n\n", len(list))
	for _, f := range list {
		fmt.Fprintf(&b, "- %s\n  Size: %d bytes\n  Modified: %s\n\n",
			f.Filename, f.Size, f.Modified.UTC().Format(time.RFC3339))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Catalog) handleReadFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return toolError("read_file", err), nil
	}
	filename, err := request.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	content, err := c.files.Read(userID, filename)
	if errors.Is(err, files.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("File '%s' not found in your storage.", filename)), nil
	}
	if err != nil {
		return toolError("read_file", err), nil
	}
	return mcp.NewToolResultText(content), nil
}

func (c *Catalog) handleModifyFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return toolError("modify_file", err), nil
	}
	filename, err := request.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content := request.GetString("content", "")

	err = c.files.Modify(ctx, userID, filename, content)
	if errors.Is(err, files.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("File '%s' not found. Use upload_file to create new files.", filename)), nil
	}
	if err != nil {
		return toolError("modify_file", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Successfully modified '%s' (%d bytes)", filename, len(content))), nil
}

func (c *Catalog) handleDeleteFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return toolError("delete_file", err), nil
	}
	filename, err := request.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	err = c.files.Delete(ctx, userID, filename)
	if errors.Is(err, files.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("File '%s' not found in your storage.", filename)), nil
	}
	if err != nil {
		return toolError("delete_file", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Successfully deleted '%s'", filename)), nil
}

func (c *Catalog) handleSearchFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return toolError("search_files", err), nil
	}
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	hits, err := c.files.Search(ctx, userID, query, request.GetInt("max_results", defaultSearchResults))
	if err != nil {
		return toolError("search_files", err), nil
	}
	return mcp.NewToolResultText(formatHits(query, hits)), nil
}

func formatHits(query string, hits []files.SearchHit) string {
	if len(hits) == 0 {
		return fmt.Sprintf("No results found for query: '%s'", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d result(s) for '%s':\n\n", len(hits), query)
	for i, h := range hits {
		fmt.Fprintf(&b, "%d. %s (score: %.3f)\n   %s...\n\n",
			i+1, h.Filename, h.Score, pkgstrings.Prefix(h.Excerpt, pkgstrings.ExcerptMaxLen))
	}
	return b.String()
}

func (c *Catalog) handleConfigureSync(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return toolError("configure_obsidian_sync", err), nil
	}
	repoURL := strings.TrimSpace(request.GetString("repo_url", ""))
	token := strings.TrimSpace(request.GetString("token", ""))
	branch := strings.TrimSpace(request.GetString("branch", "main"))
	if branch == "" {
		branch = "main"
	}

	if repoURL == "" || token == "" {
		cfg, err := c.files.SyncStatus(userID)
		if errors.Is(err, files.ErrNotFound) {
			return mcp.NewToolResultText("No Obsidian sync configuration found.\n" + syncHelp), nil
		}
		if err != nil {
			return mcp.NewToolResultText(fmt.Sprintf("No Obsidian sync configuration found.\n%s\nError reading existing config: %v", syncHelp, err)), nil
		}
		source := "manually configured"
		if cfg.AutoConfigured {
			source = "auto-configured via customUserVars"
		}
		return mcp.NewToolResultText(fmt.Sprintf(
			"Obsidian sync is already configured for repository: %s\n"+
				"Configuration was %s.\n"+
				"To update, provide new repo_url and/or token parameters, or update customUserVars in UI settings.",
			cfg.RepoURL, source)), nil
	}

	if err := c.files.ConfigureSync(userID, repoURL, token, branch); err != nil {
		return toolError("configure_obsidian_sync", err), nil
	}
	return mcp.NewToolResultText("Successfully configured Obsidian Sync for repository: " + repoURL), nil
}
