package oauth

import (
	"context"
	"time"
)

// Authorize page modes.
const (
	// ModeLogin verifies the user's chat application email and password.
	ModeLogin = "login"
	// ModeApprove issues a code after a single confirmation click.
	ModeApprove = "approve"
)

// AuthorizationCode is a pending, single-use code awaiting exchange.
type AuthorizationCode struct {
	Code      string
	UserID    string
	CreatedAt time.Time

	// CodeChallenge is set when the client started the flow with PKCE.
	CodeChallenge       string
	CodeChallengeMethod string
}

// LoginResult is the upstream credential material obtained by a successful login.
type LoginResult struct {
	BearerToken RedactedToken
	Cookies     map[string]string
}

// Authenticator verifies end-user credentials against the chat application.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*LoginResult, error)
}

// CredentialStore is the persistence the authorization flow writes to.
type CredentialStore interface {
	SaveCredential(ctx context.Context, userID string, bearer RedactedToken, cookies map[string]string) error
	SaveAccessToken(ctx context.Context, token, userID string) error
}

// TokenResponse is the body of a successful /token exchange.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope"`
}

// ErrorResponse is an OAuth error body.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// AuthorizationServerMetadata is the RFC 8414 discovery document.
type AuthorizationServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported,omitempty"`
}

// ProtectedResourceMetadata is the RFC 9728 document for the MCP endpoint.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	BearerMethodsSupported []string `json:"bearer_methods_supported,omitempty"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
}

// userMessager is implemented by login errors that carry text safe to show the user.
type userMessager interface {
	UserMessage() string
}
