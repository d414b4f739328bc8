// Package files implements per-user file storage with semantic search.
//
// Each user owns a directory under the storage root. Text files written there
// are indexed in the RAG API under the id "user_<user id>_<filename>" so that
// search can be filtered to the caller's own documents. The directory also
// holds git_config.json, the user's note sync repository settings, which is
// never listed or served as a regular file.
package files
