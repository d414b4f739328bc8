package identity

import (
	"encoding/json"
	"net/http"
	"strings"

	"mcpgate/internal/metrics"
	"mcpgate/pkg/logging"
)

// MiddlewareOptions configures Middleware.
type MiddlewareOptions struct {
	// ProtectedPath requires an identity; requests to it (or any path ending
	// in it) without one are answered with 401.
	ProtectedPath string

	// Challenge is the WWW-Authenticate value sent with the 401. Defaults to "Bearer".
	Challenge string

	// Sync, when set, observes every request that resolved an identity.
	Sync *SyncTrigger
}

type authRequiredBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	OAuthRequired    bool   `json:"oauth_required"`
}

// Middleware resolves the request identity and binds it to the request context.
func Middleware(resolver *Resolver, opts MiddlewareOptions) func(http.Handler) http.Handler {
	challenge := opts.Challenge
	if challenge == "" {
		challenge = "Bearer"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, source, ok := resolver.Resolve(r)
			if !ok {
				metrics.IdentityResolved("none")
				if isProtected(r.URL.Path, opts.ProtectedPath) {
					logging.Debug("Identity", "Rejecting unauthenticated %s %s", r.Method, r.URL.Path)
					writeAuthRequired(w, challenge)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			metrics.IdentityResolved(source)
			logging.Debug("Identity", "Resolved user %s from %s", logging.TruncateID(userID), source)

			if opts.Sync != nil {
				opts.Sync.Observe(r, userID)
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func isProtected(path, protected string) bool {
	if protected == "" {
		return false
	}
	path = strings.TrimSuffix(path, "/")
	return path == protected || strings.HasSuffix(path, protected)
}

func writeAuthRequired(w http.ResponseWriter, challenge string) {
	w.Header().Set("WWW-Authenticate", challenge)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(authRequiredBody{
		Error:            "oauth_required",
		ErrorDescription: "OAuth authentication required",
		OAuthRequired:    true,
	})
}
