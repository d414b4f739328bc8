package config

import "time"

// Config is the top-level configuration structure for mcpgate.
//
// Values are resolved in three layers: built-in defaults, then the optional
// config.yaml, then environment variables.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Storage  StorageConfig  `yaml:"storage"`
	OAuth    OAuthConfig    `yaml:"oauth"`
	Identity IdentityConfig `yaml:"identity"`
	RAG      RAGConfig      `yaml:"rag"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host,omitempty" env:"HOST"`
	Port int    `yaml:"port,omitempty" env:"PORT"`

	// PublicURL is the externally reachable base URL, used to advertise the
	// authorization server metadata in WWW-Authenticate challenges.
	PublicURL string `yaml:"publicUrl,omitempty" env:"MCPGATE_PUBLIC_URL"`

	// MCPPath is the protected tool-invocation endpoint.
	MCPPath string `yaml:"mcpPath,omitempty" env:"MCPGATE_MCP_PATH"`

	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout,omitempty"`
	WriteTimeout      time.Duration `yaml:"writeTimeout,omitempty"`
	IdleTimeout       time.Duration `yaml:"idleTimeout,omitempty"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout,omitempty"`
}

// UpstreamConfig describes the chat application REST API.
type UpstreamConfig struct {
	BaseURL   string        `yaml:"baseUrl,omitempty" env:"LIBRECHAT_API_BASE_URL"`
	Timeout   time.Duration `yaml:"timeout,omitempty" env:"MCPGATE_UPSTREAM_TIMEOUT"`
	UserAgent string        `yaml:"userAgent,omitempty" env:"MCPGATE_USER_AGENT"`
}

// StorageConfig describes where durable state lives.
type StorageConfig struct {
	// Root holds the credential database and one directory per user.
	Root string `yaml:"root,omitempty" env:"STORAGE_ROOT"`

	// EncryptionKey is an optional base64-encoded 32-byte key. When set,
	// upstream credentials are encrypted at rest with AES-256-GCM.
	EncryptionKey string `yaml:"encryptionKey,omitempty" env:"MCPGATE_ENCRYPTION_KEY"`
}

// OAuthMode selects how the authorize endpoint authenticates the end user.
type OAuthMode string

const (
	// OAuthModeLogin verifies email and password against the upstream login endpoint.
	OAuthModeLogin OAuthMode = "login"
	// OAuthModeApprove issues a code after a one-click confirmation.
	OAuthModeApprove OAuthMode = "approve"
)

// OAuthConfig controls the authorization-code flow.
type OAuthConfig struct {
	Mode           OAuthMode     `yaml:"mode,omitempty" env:"MCPGATE_OAUTH_MODE"`
	AccessTokenTTL time.Duration `yaml:"accessTokenTTL,omitempty" env:"MCPGATE_ACCESS_TOKEN_TTL"`
	CodeTTL        time.Duration `yaml:"codeTTL,omitempty" env:"MCPGATE_CODE_TTL"`
	Scope          string        `yaml:"scope,omitempty" env:"MCPGATE_OAUTH_SCOPE"`

	// LoginRateLimit is the number of login attempts allowed per claimed user per minute.
	LoginRateLimit int `yaml:"loginRateLimit,omitempty" env:"MCPGATE_LOGIN_RATE_LIMIT"`
	LoginBurst     int `yaml:"loginBurst,omitempty" env:"MCPGATE_LOGIN_BURST"`
}

// IdentityConfig controls request identity resolution.
type IdentityConfig struct {
	UserHeader string `yaml:"userHeader,omitempty" env:"MCPGATE_USER_HEADER"`

	// SyncCooldown is the minimum interval between opportunistic sync
	// configuration writes for one user.
	SyncCooldown time.Duration `yaml:"syncCooldown,omitempty" env:"MCPGATE_SYNC_COOLDOWN"`
}

// RAGConfig describes the vector search API used for file indexing.
type RAGConfig struct {
	URL          string        `yaml:"url,omitempty" env:"RAG_API_URL"`
	ChunkSize    int           `yaml:"chunkSize,omitempty" env:"CHUNK_SIZE"`
	ChunkOverlap int           `yaml:"chunkOverlap,omitempty" env:"CHUNK_OVERLAP"`
	Timeout      time.Duration `yaml:"timeout,omitempty" env:"RAG_API_TIMEOUT"`
}
