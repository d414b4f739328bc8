// Package logging provides the structured logger used across mcpgate.
//
// It is a thin layer over log/slog that tags every record with a subsystem
// name and keeps formatting printf-style at the call site:
//
//	logging.Init(logging.LevelInfo, os.Stdout)
//
//	logging.Info("Bootstrap", "Listening on %s", addr)
//	logging.Debug("Upstream", "GET %s -> %d", url, status)
//	logging.Warn("Identity", "Rejected placeholder user id from %s", source)
//	logging.Error("Store", err, "Failed to save credential")
//
// # Subsystems
//
//   - Bootstrap: startup and shutdown
//   - Config: configuration loading
//   - Store: durable credential store
//   - OAuth: authorize and token endpoints, code store
//   - Identity: request identity resolution
//   - Upstream: calls to the chat application API
//   - Tools, Files: MCP tool handlers and per-user file storage
//   - Server: HTTP access log
//
// # Sensitive values
//
// User identifiers are shortened with TruncateID before they are logged.
// Bearer credentials, cookies and access tokens are never logged.
//
// # Audit Logging
//
// Security-relevant operations are recorded with Audit:
//
//	logging.Audit(logging.AuditEvent{
//	    Action:  "token_exchange",
//	    Outcome: "success",
//	    UserID:  logging.TruncateID(userID),
//	})
//
// Audit events are logged at INFO level with an [AUDIT] prefix for easy
// filtering.
package logging
