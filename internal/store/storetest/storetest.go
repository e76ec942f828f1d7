// Package storetest arma un Manager sobre SQLite en memoria para tests.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dropDatabas3/hellojohn-tokens/internal/store"
	_ "github.com/dropDatabas3/hellojohn-tokens/internal/store/adapters/sqlite"
)

// MemoryDSN devuelve un DSN de SQLite en memoria con nombre único.
func MemoryDSN() string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
}

// NewManager abre y migra un store SQLite en memoria. Se cierra al terminar el test.
func NewManager(t testing.TB) *store.Manager {
	t.Helper()
	ctx := context.Background()

	m, err := store.NewManager(ctx, store.ManagerConfig{
		Adapter: store.AdapterConfig{Name: "sqlite", DSN: MemoryDSN()},
		Logger:  zap.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	_, err = m.Start(ctx)
	require.NoError(t, err)
	return m
}
