package app

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpgate/internal/config"
	"mcpgate/internal/oauth"
)

func testGatewayConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.Storage.Root = t.TempDir()
	return cfg
}

func TestOpenCredentialStore_Plain(t *testing.T) {
	cfg := testGatewayConfig(t)

	store, err := OpenCredentialStore(cfg)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(filepath.Join(cfg.Storage.Root, "mcp_tokens.db"))
	assert.NoError(t, err)
}

func TestOpenCredentialStore_Encrypted(t *testing.T) {
	cfg := testGatewayConfig(t)
	cfg.Storage.EncryptionKey = base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))

	store, err := OpenCredentialStore(cfg)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.SaveCredential(ctx, "u1", oauth.NewRedactedToken("jwt"), nil))
	cred, err := store.GetCredential(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "jwt", cred.BearerToken.Value())
}

func TestOpenCredentialStore_BadKey(t *testing.T) {
	cfg := testGatewayConfig(t)
	cfg.Storage.EncryptionKey = "not base64!"

	_, err := OpenCredentialStore(cfg)
	assert.Error(t, err)
}

func TestInitializeServices(t *testing.T) {
	gw := testGatewayConfig(t)
	cfg := NewConfig(false, "", "test")
	cfg.Gateway = &gw

	svc, err := InitializeServices(cfg)
	require.NoError(t, err)
	defer svc.Close()

	require.NotNil(t, svc.Server)

	rec := httptest.NewRecorder()
	svc.Server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	svc.Server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInitializeServices_RequiresConfig(t *testing.T) {
	_, err := InitializeServices(NewConfig(false, "", "test"))
	assert.Error(t, err)
}
