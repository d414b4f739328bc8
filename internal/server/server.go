package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"mcpgate/internal/identity"
	"mcpgate/internal/metrics"
	"mcpgate/internal/oauth"
	"mcpgate/pkg/logging"
)

const (
	// DefaultReadHeaderTimeout is the default timeout for reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultWriteTimeout is the default timeout for writing responses.
	DefaultWriteTimeout = 120 * time.Second
	// DefaultIdleTimeout is the default idle timeout for keepalive connections.
	DefaultIdleTimeout = 120 * time.Second
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second

	healthPath    = "/health"
	metricsPath   = "/metrics"
	authorizePath = "/authorize"
	tokenPath     = "/token"
)

// Options configures the HTTP server.
type Options struct {
	Addr    string
	MCPPath string

	// PublicURL is the externally reachable base URL. When empty the 401
	// challenge carries no resource_metadata parameter.
	PublicURL string

	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

func (o *Options) setDefaults() {
	if o.MCPPath == "" {
		o.MCPPath = "/mcp"
	}
	if o.ReadHeaderTimeout <= 0 {
		o.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// Server is the gateway HTTP server.
type Server struct {
	opts    Options
	handler http.Handler
}

// New wires the MCP server, the authorization flow and identity resolution
// into one handler. sync may be nil.
func New(opts Options, mcp *mcpserver.MCPServer, flow *oauth.Handler, resolver *identity.Resolver, sync *identity.SyncTrigger) *Server {
	opts.setDefaults()
	metrics.Register()

	streamable := mcpserver.NewStreamableHTTPServer(mcp,
		mcpserver.WithEndpointPath(opts.MCPPath),
		mcpserver.WithHTTPContextFunc(bindIdentity),
	)

	mux := http.NewServeMux()
	mux.Handle(healthPath, metrics.Instrument(healthPath, http.HandlerFunc(serveHealth)))
	mux.Handle(metricsPath, metrics.Handler())
	mux.Handle(authorizePath, metrics.Instrument(authorizePath, http.HandlerFunc(flow.ServeAuthorize)))
	mux.Handle(tokenPath, metrics.Instrument(tokenPath, http.HandlerFunc(flow.ServeToken)))
	mux.Handle(oauth.MetadataPath, metrics.Instrument(oauth.MetadataPath, http.HandlerFunc(flow.ServeMetadata)))
	mux.Handle(oauth.ProtectedResourcePath, metrics.Instrument(oauth.ProtectedResourcePath, http.HandlerFunc(flow.ServeProtectedResourceMetadata)))
	mux.Handle(opts.MCPPath, metrics.Instrument(opts.MCPPath, streamable))

	protect := identity.Middleware(resolver, identity.MiddlewareOptions{
		ProtectedPath: opts.MCPPath,
		Challenge:     oauth.BuildChallenge(oauth.MetadataURL(opts.PublicURL)),
		Sync:          sync,
	})

	return &Server{
		opts:    opts,
		handler: withRequestID(protect(mux)),
	}
}

// bindIdentity carries the user bound by the identity middleware into the
// context the MCP server hands to tool handlers.
func bindIdentity(ctx context.Context, r *http.Request) context.Context {
	if userID, ok := identity.UserIDFromContext(r.Context()); ok {
		return identity.WithUserID(ctx, userID)
	}
	return ctx
}

// Handler returns the complete handler chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func serveHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Run listens on opts.Addr and serves until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.opts.ReadHeaderTimeout,
		WriteTimeout:      s.opts.WriteTimeout,
		IdleTimeout:       s.opts.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Server", "Listening on %s (MCP endpoint %s)", ln.Addr(), s.opts.MCPPath)
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logging.Info("Server", "Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
