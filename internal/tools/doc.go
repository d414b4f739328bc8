// Package tools defines the MCP tool catalog served by mcpgate.
//
// Upstream tools (agents, models, MCP server info) call the chat API through
// an upstream executor, which attaches the calling user's stored credential
// and refreshes it on expiry. File tools operate on the calling user's
// private storage directory. In both cases the user comes from the request
// context populated by the identity middleware.
//
// Tool failures are reported as MCP tool errors rather than protocol errors,
// so clients can show the message to the user. Authorization failures ask the
// user to reconnect the server.
package tools
