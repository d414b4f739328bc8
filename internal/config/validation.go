package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string) {
	*ve = append(*ve, ValidationError{Field: field, Message: message})
}

// Validate checks a resolved configuration.
func Validate(c Config) error {
	var errs ValidationErrors

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs.Add("server.port", "must be between 1 and 65535")
	}
	if !strings.HasPrefix(c.Server.MCPPath, "/") {
		errs.Add("server.mcpPath", "must start with '/'")
	}
	if c.Server.PublicURL != "" {
		if err := validateHTTPURL(c.Server.PublicURL); err != nil {
			errs.Add("server.publicUrl", err.Error())
		}
	}

	if err := validateHTTPURL(c.Upstream.BaseURL); err != nil {
		errs.Add("upstream.baseUrl", err.Error())
	}
	if c.Upstream.Timeout <= 0 {
		errs.Add("upstream.timeout", "must be positive")
	}

	if strings.TrimSpace(c.Storage.Root) == "" {
		errs.Add("storage.root", "is required")
	}
	if c.Storage.EncryptionKey != "" {
		key, err := base64.StdEncoding.DecodeString(c.Storage.EncryptionKey)
		if err != nil {
			errs.Add("storage.encryptionKey", "must be base64 encoded")
		} else if len(key) != 32 {
			errs.Add("storage.encryptionKey", fmt.Sprintf("must decode to 32 bytes, got %d", len(key)))
		}
	}

	switch c.OAuth.Mode {
	case OAuthModeLogin, OAuthModeApprove:
	default:
		errs.Add("oauth.mode", fmt.Sprintf("unsupported mode %q (supported: %s, %s)", c.OAuth.Mode, OAuthModeLogin, OAuthModeApprove))
	}
	if c.OAuth.AccessTokenTTL <= 0 {
		errs.Add("oauth.accessTokenTTL", "must be positive")
	}
	if c.OAuth.CodeTTL <= 0 {
		errs.Add("oauth.codeTTL", "must be positive")
	}
	if c.OAuth.LoginRateLimit <= 0 {
		errs.Add("oauth.loginRateLimit", "must be positive")
	}

	if strings.TrimSpace(c.Identity.UserHeader) == "" {
		errs.Add("identity.userHeader", "is required")
	}
	if c.Identity.SyncCooldown < 0 {
		errs.Add("identity.syncCooldown", "must not be negative")
	}

	if err := validateHTTPURL(c.RAG.URL); err != nil {
		errs.Add("rag.url", err.Error())
	}
	if c.RAG.ChunkSize <= 0 {
		errs.Add("rag.chunkSize", "must be positive")
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		errs.Add("rag.chunkOverlap", "must be non-negative and smaller than rag.chunkSize")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme %q, must be http or https", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host")
	}
	return nil
}
