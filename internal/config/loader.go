package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"mcpgate/pkg/logging"
)

const configFileName = "config.yaml"

// LoadConfig resolves the configuration from defaults, the optional
// config.yaml inside configPath (skipped when configPath is empty), and the
// environment, then validates the result.
func LoadConfig(configPath string) (Config, error) {
	config := GetDefaultConfig()

	if configPath != "" {
		if err := loadFile(filepath.Join(configPath, configFileName), &config); err != nil {
			return Config{}, err
		}
	}

	if err := env.Parse(&config); err != nil {
		return Config{}, fmt.Errorf("error parsing environment: %w", err)
	}

	if err := Validate(config); err != nil {
		return Config{}, err
	}
	return config, nil
}

func loadFile(configFilePath string, config *Config) error {
	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("Config", "No config.yaml found at %s, using defaults", configFilePath)
			return nil
		}
		return fmt.Errorf("error reading config from %s: %w", configFilePath, err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}
	logging.Info("Config", "Loaded configuration from %s", configFilePath)
	return nil
}

// DatabasePath returns the location of the credential database.
func (c Config) DatabasePath() string {
	return filepath.Join(c.Storage.Root, "mcp_tokens.db")
}

// ListenAddr returns host:port for the HTTP listener.
func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
