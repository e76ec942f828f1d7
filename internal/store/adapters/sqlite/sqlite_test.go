package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellojohn-tokens/internal/store"
	"github.com/dropDatabas3/hellojohn-tokens/internal/store/storetest"
)

func TestSQLiteRepositoryContract(t *testing.T) {
	storetest.RunRepositoryContract(t, storetest.NewManager(t), true)
}

func TestSQLiteAdapterConnectRequiresDSN(t *testing.T) {
	adapter, ok := store.GetAdapter("sqlite")
	require.True(t, ok)

	_, err := adapter.Connect(context.Background(), store.AdapterConfig{})
	require.Error(t, err)
}
