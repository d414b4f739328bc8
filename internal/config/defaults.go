package config

import "time"

const (
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 8000
	DefaultMCPPath        = "/mcp"
	DefaultUpstreamURL    = "http://api:3080/api"
	DefaultUpstreamTimeout = 30 * time.Second
	DefaultStorageRoot    = "/tmp/librechat-mcp-storage"

	// DefaultAccessTokenTTL is the advertised lifetime of gateway access tokens (30 days).
	DefaultAccessTokenTTL = 30 * 24 * time.Hour
	DefaultCodeTTL        = 10 * time.Minute
	DefaultOAuthScope     = "librechat_mcp"
	DefaultLoginRateLimit = 10
	DefaultLoginBurst     = 5

	DefaultUserHeader   = "X-User-ID"
	DefaultSyncCooldown = 30 * time.Second

	DefaultRAGURL          = "http://librechat-rag-api:8000"
	DefaultRAGChunkSize    = 1500
	DefaultRAGChunkOverlap = 100
	DefaultRAGTimeout      = 30 * time.Second

	// DefaultUserAgent mimics a browser; the upstream API rejects some non-browser agents.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36"
)

// GetDefaultConfig returns the built-in configuration.
func GetDefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:              DefaultHost,
			Port:              DefaultPort,
			MCPPath:           DefaultMCPPath,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      120 * time.Second,
			IdleTimeout:       120 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Upstream: UpstreamConfig{
			BaseURL:   DefaultUpstreamURL,
			Timeout:   DefaultUpstreamTimeout,
			UserAgent: DefaultUserAgent,
		},
		Storage: StorageConfig{
			Root: DefaultStorageRoot,
		},
		OAuth: OAuthConfig{
			Mode:           OAuthModeLogin,
			AccessTokenTTL: DefaultAccessTokenTTL,
			CodeTTL:        DefaultCodeTTL,
			Scope:          DefaultOAuthScope,
			LoginRateLimit: DefaultLoginRateLimit,
			LoginBurst:     DefaultLoginBurst,
		},
		Identity: IdentityConfig{
			UserHeader:   DefaultUserHeader,
			SyncCooldown: DefaultSyncCooldown,
		},
		RAG: RAGConfig{
			URL:          DefaultRAGURL,
			ChunkSize:    DefaultRAGChunkSize,
			ChunkOverlap: DefaultRAGChunkOverlap,
			Timeout:      DefaultRAGTimeout,
		},
	}
}
