package app

import (
	"mcpgate/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug settings
	Debug bool

	// Custom configuration directory (optional). config.yaml is read from it
	// when present; environment variables are always applied on top.
	ConfigPath string

	// Version is announced to MCP clients.
	Version string

	// Gateway configuration, filled in by NewApplication.
	Gateway *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath, version string) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
		Version:    version,
	}
}
