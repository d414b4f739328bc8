// Package identity resolves which user a request acts for and carries that
// identity through the request context.
//
// The Resolver runs an ordered list of extractors (bearer access token,
// X-User-ID header, userId/user_id query parameters, JSON-RPC body) and keeps
// the first candidate that passes Validate. Unresolved template placeholders
// such as "{{LIBRECHAT_USER_ID}}" and blank values never count as an identity.
//
// The resolved identity is bound to the request's context.Context, so it is
// visible to everything that handles that request and to nothing else.
package identity
