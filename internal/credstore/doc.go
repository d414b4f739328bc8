// Package credstore persists per-user upstream credentials and the gateway
// access tokens bound to them.
//
// Everything lives in one SQLite file (mcp_tokens.db under the storage root)
// with two key-value tables:
//
//	user_tokens    user_id -> bearer credential, cookie jar, updated_at
//	access_tokens  sha256(token) -> user_id, created_at
//
// Saving a credential replaces the previous one for that user; it never merges.
// Deleting a credential also deletes every access token issued for the user.
//
// When an encryptor is configured, the bearer credential and the cookie JSON
// are encrypted with AES-256-GCM before they reach disk. Access tokens are only
// ever stored hashed, so a copied database cannot be replayed against the
// gateway.
package credstore
