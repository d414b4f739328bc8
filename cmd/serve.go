package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mcpgate/internal/app"
)

// serveDebug enables verbose logging across the application.
var serveDebug bool

// serveConfigPath specifies a configuration directory containing config.yaml.
// Environment variables override values from the file.
var serveConfigPath string

// serveCmd starts the gateway.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP gateway HTTP server",
	Long: `Starts the mcpgate HTTP server.

Endpoints:
  /mcp                                      MCP streamable HTTP endpoint (requires identity)
  /authorize, /token                        authorization-code flow
  /.well-known/oauth-authorization-server   discovery document
  /health, /metrics                         liveness and Prometheus metrics

Configuration:
  Defaults are built in. Use --config-path to point at a directory containing
  config.yaml. Environment variables (LIBRECHAT_API_BASE_URL, STORAGE_ROOT,
  RAG_API_URL, HOST, PORT, MCPGATE_*) take precedence over the file.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// runServe is the main entry point for the serve command
func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(serveDebug, serveConfigPath, GetVersion())

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().StringVar(&serveConfigPath, "config-path", "", "Configuration directory containing config.yaml")
}
