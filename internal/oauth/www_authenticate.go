package oauth

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// MetadataPath is where the authorization server metadata (RFC 8414) is served.
	MetadataPath = "/.well-known/oauth-authorization-server"
	// ProtectedResourcePath is where the protected resource metadata (RFC 9728) is served.
	ProtectedResourcePath = "/.well-known/oauth-protected-resource"
)

// WWWAuthenticateParams holds the parameters of a Bearer challenge.
type WWWAuthenticateParams struct {
	Scheme              string
	Realm               string
	Error               string
	ErrorDescription    string
	ResourceMetadataURL string
}

var challengeParamRegex = regexp.MustCompile(`(\w+)="([^"]*)"`)

// MetadataURL returns the protected resource metadata URL advertised in the
// 401 challenge for a public base URL, or "" when no base URL is known.
func MetadataURL(publicURL string) string {
	if publicURL == "" {
		return ""
	}
	return strings.TrimSuffix(publicURL, "/") + ProtectedResourcePath
}

// BuildChallenge renders the WWW-Authenticate value sent with a 401 from the
// protected endpoint. Without a metadata URL the bare scheme is returned.
func BuildChallenge(resourceMetadataURL string) string {
	if resourceMetadataURL == "" {
		return "Bearer"
	}
	return fmt.Sprintf(`Bearer resource_metadata="%s"`, resourceMetadataURL)
}

// ParseWWWAuthenticate parses a Bearer challenge header value.
//
//	Bearer realm="https://auth.example.com",
//	       resource_metadata="https://mcp.example.com/.well-known/oauth-authorization-server"
func ParseWWWAuthenticate(header string) *WWWAuthenticateParams {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}

	scheme, rest, _ := strings.Cut(header, " ")
	params := &WWWAuthenticateParams{Scheme: scheme}

	for _, match := range challengeParamRegex.FindAllStringSubmatch(rest, -1) {
		value := match[2]
		switch strings.ToLower(match[1]) {
		case "realm":
			params.Realm = value
		case "error":
			params.Error = value
		case "error_description":
			params.ErrorDescription = value
		case "resource_metadata":
			params.ResourceMetadataURL = value
		}
	}
	return params
}
