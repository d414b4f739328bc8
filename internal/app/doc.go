// Package app provides application bootstrap and lifecycle management for mcpgate.
//
// # Components
//
//  1. Bootstrap (bootstrap.go): logging setup, configuration loading, run loop
//  2. Configuration (config.go): runtime flags passed in from the CLI
//  3. Services (services.go): construction and teardown of every component
//
// # Bootstrap sequence
//
// NewApplication initializes logging from the --debug flag, loads the gateway
// configuration (defaults, then config.yaml from --config-path, then
// environment) and calls InitializeServices, which opens the credential
// database, creates the authorization code store, the upstream client and
// executor, the per-user file store with its RAG client, the MCP tool server
// and finally the HTTP server.
//
// Run blocks until the context is cancelled or SIGINT/SIGTERM arrives, then
// shuts the HTTP server down gracefully, waits for in-flight sync writes and
// closes the database.
//
// OpenCredentialStore is also used by the operator commands, which need the
// database without the rest of the gateway.
package app
