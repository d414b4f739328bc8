package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mcpgate/internal/config"
	"mcpgate/pkg/logging"
)

// Application represents the main application structure that bootstraps and runs mcpgate.
//
// The Application follows a two-phase initialization pattern:
//  1. Bootstrap phase: Load configuration, initialize logging, setup services
//  2. Execution phase: Serve HTTP until a signal arrives
//
// Example usage:
//
//	cfg := app.NewConfig(true, "/etc/mcpgate", version)
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	return application.Run(ctx)
type Application struct {
	config   *Config
	services *Services
}

// NewApplication configures logging, loads the gateway configuration and
// initializes all services.
func NewApplication(cfg *Config) (*Application, error) {
	level := logging.LevelInfo
	if cfg.Debug {
		level = logging.LevelDebug
	}
	logging.Init(level, os.Stdout)

	gw, err := config.LoadConfig(cfg.ConfigPath)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load configuration")
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.ConfigPath != "" {
		logging.Info("Bootstrap", "Loaded configuration from %s", cfg.ConfigPath)
	}
	cfg.Gateway = &gw

	services, err := InitializeServices(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM is received, then shuts
// down gracefully and releases all services.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := a.services.Server.Run(ctx)
	if err := a.services.Close(); err != nil {
		logging.Warn("Bootstrap", "Error closing services: %v", err)
	}
	if runErr != nil {
		return runErr
	}
	logging.Info("Bootstrap", "Shutdown complete")
	return nil
}
