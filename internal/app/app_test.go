package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dropDatabas3/hellojohn-tokens/internal/config"
	"github.com/dropDatabas3/hellojohn-tokens/internal/store"
	"github.com/dropDatabas3/hellojohn-tokens/internal/store/storetest"
)

func TestBuildServesHealth(t *testing.T) {
	t.Setenv("STORAGE_DSN", storetest.MemoryDSN())
	t.Setenv("TOKEN_HASH_KEY", "0123456789abcdef")
	cfg, err := config.Load("")
	require.NoError(t, err)

	c, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	rec := httptest.NewRecorder()
	c.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "sqlite")

	n, err := c.Tokens.SweepExpired(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.Driver = "oracle"

	_, err = OpenStore(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
}

func TestBuildBadDSNIsNotStarted(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.Driver = "postgres"
	cfg.Storage.DSN = "postgres://%zz"

	_, err = Build(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	require.False(t, store.IsModuleStartError(err))
}
