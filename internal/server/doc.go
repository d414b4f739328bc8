// Package server assembles the mcpgate HTTP surface.
//
// # Routes
//
//	/health                                   liveness check (unauthenticated)
//	/metrics                                  Prometheus exposition
//	/authorize                                authorization-code login or approval page
//	/token                                    code to access-token exchange
//	/.well-known/oauth-protected-resource     RFC 9728 protected resource metadata
//	/.well-known/oauth-authorization-server   RFC 8414 discovery document
//	/mcp                                      MCP streamable HTTP endpoint (protected)
//
// # Layering
//
// Every request passes through the same chain:
//
//	┌───────────────────────────────────────────────┐
//	│ request id + access log                       │
//	│   identity middleware (resolve, bind, 401)    │
//	│     per-route metrics                         │
//	│       route handler                           │
//	└───────────────────────────────────────────────┘
//
// The identity middleware answers requests to the MCP path that carry no
// resolvable user with 401 and a WWW-Authenticate challenge pointing to the
// protected resource metadata. That document names the gateway as the
// authorization server, whose discovery document leads MCP clients into the
// authorization-code flow.
package server
