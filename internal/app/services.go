package app

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/giantswarm/mcp-oauth/security"

	"mcpgate/internal/config"
	"mcpgate/internal/credstore"
	"mcpgate/internal/files"
	"mcpgate/internal/identity"
	"mcpgate/internal/oauth"
	"mcpgate/internal/server"
	"mcpgate/internal/tools"
	"mcpgate/internal/upstream"
	"mcpgate/pkg/logging"
)

// Services holds every long-lived component of a running gateway.
//
// Initialization order follows the dependencies:
//  1. Credential store (and encryptor)
//  2. Authorization code store and upstream client
//  3. Upstream executor and file store
//  4. MCP tool server, flow handler and identity resolution
//  5. HTTP server
type Services struct {
	Store    *credstore.Store
	Codes    *oauth.CodeStore
	Upstream *upstream.Client
	Executor *upstream.Executor
	Files    *files.Store
	Sync     *identity.SyncTrigger
	Flow     *oauth.Handler
	Server   *server.Server
}

// OpenCredentialStore opens the credential database described by cfg,
// enabling encryption at rest when a key is configured.
func OpenCredentialStore(cfg config.Config) (*credstore.Store, error) {
	var opts []credstore.Option
	if cfg.Storage.EncryptionKey != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.Storage.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("decode encryption key: %w", err)
		}
		enc, err := security.NewEncryptor(key)
		if err != nil {
			return nil, fmt.Errorf("create encryptor: %w", err)
		}
		opts = append(opts, credstore.WithEncryptor(enc))
		logging.Info("Bootstrap", "Credential encryption at rest enabled")
	}
	return credstore.Open(cfg.DatabasePath(), opts...)
}

// InitializeServices builds every component from cfg. The returned Services
// must be closed by the caller.
func InitializeServices(cfg *Config) (*Services, error) {
	gw := cfg.Gateway
	if gw == nil {
		return nil, errors.New("gateway configuration not loaded")
	}

	store, err := OpenCredentialStore(*gw)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	logging.Info("Bootstrap", "Credential store at %s", gw.DatabasePath())

	svc := &Services{Store: store}
	svc.Codes = oauth.NewCodeStore(gw.OAuth.CodeTTL)
	svc.Upstream = upstream.NewClient(gw.Upstream.BaseURL, gw.Upstream.Timeout, gw.Upstream.UserAgent)
	svc.Executor = upstream.NewExecutor(gw.Upstream.BaseURL, gw.Upstream.Timeout, gw.Upstream.UserAgent, store, svc.Upstream)

	rag := files.NewRAGClient(gw.RAG.URL, gw.RAG.Timeout, gw.RAG.ChunkSize, gw.RAG.ChunkOverlap)
	svc.Files = files.NewStore(gw.Storage.Root, rag)
	svc.Sync = identity.NewSyncTrigger(svc.Files, gw.Identity.SyncCooldown)

	var auth oauth.Authenticator
	if gw.OAuth.Mode == config.OAuthModeLogin {
		auth = svc.Upstream
	}
	svc.Flow = oauth.NewHandler(oauth.HandlerConfig{
		Mode:           string(gw.OAuth.Mode),
		AccessTokenTTL: gw.OAuth.AccessTokenTTL,
		Scope:          gw.OAuth.Scope,
		LoginRateLimit: gw.OAuth.LoginRateLimit,
		LoginBurst:     gw.OAuth.LoginBurst,
		Issuer:         gw.Server.PublicURL,
		ResourcePath:   gw.Server.MCPPath,
	}, svc.Codes, store, auth)

	mcp := tools.NewServer(cfg.Version, tools.NewCatalog(svc.Executor, svc.Files))
	resolver := identity.DefaultResolver(store, gw.Identity.UserHeader)

	svc.Server = server.New(server.Options{
		Addr:              gw.ListenAddr(),
		MCPPath:           gw.Server.MCPPath,
		PublicURL:         gw.Server.PublicURL,
		ReadHeaderTimeout: gw.Server.ReadHeaderTimeout,
		WriteTimeout:      gw.Server.WriteTimeout,
		IdleTimeout:       gw.Server.IdleTimeout,
		ShutdownTimeout:   gw.Server.ShutdownTimeout,
	}, mcp, svc.Flow, resolver, svc.Sync)

	logging.Info("Bootstrap", "Upstream %s, RAG %s, oauth mode %s", gw.Upstream.BaseURL, gw.RAG.URL, gw.OAuth.Mode)
	return svc, nil
}

// Close releases background workers and the database.
func (s *Services) Close() error {
	if s.Sync != nil {
		s.Sync.Wait()
	}
	if s.Codes != nil {
		s.Codes.Stop()
	}
	if s.Store != nil {
		return s.Store.Close()
	}
	return nil
}
