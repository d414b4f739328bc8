package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"mcpgate/internal/config"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeConfigInvalid indicates the configuration failed validation.
	ExitCodeConfigInvalid = 2
)

// rootCmd represents the base command for the mcpgate application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mcpgate",
	Short: "MCP gateway for LibreChat with per-user OAuth",
	Long: `mcpgate exposes the LibreChat REST API (agents, models, MCP server info)
and a per-user file store with semantic search as MCP tools.

Each MCP client authenticates through an authorization-code flow; the user's
LibreChat credential is stored and refreshed transparently on every call.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mcpgate version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	var invalid config.ValidationErrors
	if errors.As(err, &invalid) {
		return ExitCodeConfigInvalid
	}
	return ExitCodeError
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCredentialsCmd())
}
