package identity

import (
	"net/http"

	"mcpgate/pkg/logging"
)

// Resolver runs extractors in order and keeps the first valid candidate.
type Resolver struct {
	extractors []Extractor
}

// NewResolver creates a resolver over the given extractors.
func NewResolver(extractors ...Extractor) *Resolver {
	return &Resolver{extractors: extractors}
}

// DefaultResolver builds the standard chain: bearer token, trusted header,
// query parameters, then the JSON body.
func DefaultResolver(tokens TokenLookup, userHeader string) *Resolver {
	return NewResolver(
		BearerExtractor{Tokens: tokens},
		HeaderExtractor{Header: userHeader},
		QueryExtractor{},
		BodyExtractor{},
	)
}

// Resolve returns the user id and the name of the extractor that produced it.
// ok is false when no extractor yields a valid identity.
func (res *Resolver) Resolve(r *http.Request) (userID, source string, ok bool) {
	for _, ex := range res.extractors {
		candidate := ex.Extract(r)
		if candidate == "" {
			continue
		}
		if err := Validate(candidate); err != nil {
			logging.Debug("Identity", "Ignoring %s candidate: %v", ex.Name(), err)
			continue
		}
		return candidate, ex.Name(), true
	}
	return "", "", false
}
