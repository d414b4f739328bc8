package files

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mcpgate/pkg/logging"
)

const syncConfigVersion = "1.0"

// SyncConfig is the note sync repository configuration for one user.
type SyncConfig struct {
	RepoURL        string    `json:"repo_url"`
	Token          string    `json:"token"`
	Branch         string    `json:"branch"`
	UpdatedAt      time.Time `json:"updated_at"`
	AutoConfigured bool      `json:"auto_configured"`
	Version        string    `json:"version"`
}

func (s *Store) syncConfigPath(userID string) (string, error) {
	dir, err := s.userDir(userID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, syncConfigName), nil
}

// SyncStatus returns the stored sync configuration or ErrNotFound.
func (s *Store) SyncStatus(userID string) (*SyncConfig, error) {
	path, err := s.syncConfigPath(userID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read sync config: %w", err)
	}
	var cfg SyncConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode sync config: %w", err)
	}
	return &cfg, nil
}

// ConfigureSync stores settings supplied explicitly by the user.
func (s *Store) ConfigureSync(userID, repoURL, token, branch string) error {
	return s.writeSyncConfig(userID, repoURL, token, branch, false)
}

// AutoConfigure stores settings received from request headers. Nothing is
// written when the stored settings already match.
func (s *Store) AutoConfigure(_ context.Context, userID, repoURL, token, branch string) (bool, error) {
	current, err := s.SyncStatus(userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		logging.Warn("Files", "Unreadable sync config for user %s, rewriting: %v", logging.TruncateID(userID), err)
	}
	if current != nil && current.RepoURL == repoURL && current.Token == token && current.Branch == branch {
		return false, nil
	}
	if err := s.writeSyncConfig(userID, repoURL, token, branch, true); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) writeSyncConfig(userID, repoURL, token, branch string, auto bool) error {
	if branch == "" {
		branch = "main"
	}
	path, err := s.syncConfigPath(userID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(SyncConfig{
		RepoURL:        repoURL,
		Token:          token,
		Branch:         branch,
		UpdatedAt:      s.now().UTC(),
		AutoConfigured: auto,
		Version:        syncConfigVersion,
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, data, 0o600); err != nil {
		return fmt.Errorf("save sync configuration: %w", err)
	}
	return nil
}
