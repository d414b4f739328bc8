// Package upstream talks to the chat application's REST API on behalf of a
// user.
//
// Client performs the two credential operations, Login and Refresh. Executor
// wraps every other upstream call: it looks up the calling user from the
// request context, attaches the stored bearer credential and, when the
// upstream answers 401, refreshes the credential once and replays the request
// once. Concurrent refreshes for one user are collapsed into a single upstream
// call.
package upstream
