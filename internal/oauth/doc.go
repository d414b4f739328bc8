// Package oauth implements the gateway's authorization-code flow.
//
// The flow binds a chat-application user to a gateway access token:
//
//  1. The MCP client opens /authorize with redirect_uri and state. The state
//     carries the claimed user id before its first ':'.
//  2. The user signs in with their chat application credentials (login mode)
//     or confirms (approve mode). In login mode the upstream bearer credential
//     and cookies are persisted for the user.
//  3. A single-use authorization code is issued and the browser is redirected
//     back to redirect_uri with code and state.
//  4. The client POSTs the code to /token and receives a long-lived bearer
//     access token bound to the user.
//
// Codes live in memory only (CodeStore) and expire after a TTL. Redemption is
// atomic: of any concurrent exchanges of one code exactly one succeeds.
//
// Secrets handled here are wrapped in RedactedToken so that they print as
// "[REDACTED]" in logs and error messages.
package oauth
