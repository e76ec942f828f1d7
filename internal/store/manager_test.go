package store_test

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dropDatabas3/hellojohn-tokens/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-tokens/internal/store"
	_ "github.com/dropDatabas3/hellojohn-tokens/internal/store/adapters/dal"
	"github.com/dropDatabas3/hellojohn-tokens/internal/store/storetest"
)

func openSQLite(t *testing.T) store.AdapterConnection {
	t.Helper()
	conn, err := store.OpenAdapter(context.Background(), store.AdapterConfig{Name: "sqlite", DSN: storetest.MemoryDSN()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func executor(t *testing.T, conn store.AdapterConnection) store.MigrationExecutor {
	t.Helper()
	mc, ok := conn.(store.MigratableConnection)
	require.True(t, ok)
	return mc.GetMigrationExecutor()
}

// altConn reemplaza el set de migraciones de una conexión real.
type altConn struct {
	store.AdapterConnection
	fsys fs.FS
}

func (c altConn) Migrations() (fs.FS, string) { return c.fsys, "sql" }
func (c altConn) GetMigrationExecutor() store.MigrationExecutor {
	return c.AdapterConnection.(store.MigratableConnection).GetMigrationExecutor()
}

func TestRegisteredAdapters(t *testing.T) {
	require.Equal(t, []string{"mysql", "postgres", "sqlite"}, store.ListAdapters())

	_, err := store.OpenAdapter(context.Background(), store.AdapterConfig{Name: "oracle"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "not registered")
}

func TestStartIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := store.NewManagerWithConnection(openSQLite(t), zap.NewNop())

	res, err := m.Start(ctx)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, res.Applied)
	require.Empty(t, res.Skipped)

	res, err = m.Start(ctx)
	require.NoError(t, err)
	require.Empty(t, res.Applied)
	require.Equal(t, []int{1, 2}, res.Skipped)

	pending, err := m.Pending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestPendingBeforeStart(t *testing.T) {
	m := store.NewManagerWithConnection(openSQLite(t), zap.NewNop())

	pending, err := m.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "security_token", pending[0].Name)
	require.Equal(t, "app_user", pending[1].Name)
}

func TestNotStarted(t *testing.T) {
	m := store.NewManagerWithConnection(openSQLite(t), zap.NewNop())

	_, err := m.BeginTx(context.Background())
	require.ErrorIs(t, err, store.ErrNotStarted)
	require.Panics(t, func() { m.Tokens() })
	require.Panics(t, func() { m.Users() })
}

func TestStartFailureIsModuleStartError(t *testing.T) {
	broken := fstest.MapFS{
		"sql/0001_ok.sql":     {Data: []byte(`CREATE TABLE a (id INTEGER PRIMARY KEY);`)},
		"sql/0002_broken.sql": {Data: []byte(`CREATE TABLE b (id INTEGER PRIMARY KEY;`)},
	}
	m := store.NewManagerWithConnection(altConn{AdapterConnection: openSQLite(t), fsys: broken}, zap.NewNop())

	res, err := m.Start(context.Background())
	require.Error(t, err)
	require.True(t, store.IsModuleStartError(err))

	var mse *store.ModuleStartError
	require.True(t, errors.As(err, &mse))
	require.Equal(t, "sqlite", mse.Backend)

	require.Equal(t, []int{1}, res.Applied)
	require.NotNil(t, res.Failed)
	require.Equal(t, 2, *res.Failed)

	// no quedó arrancado
	_, err = m.BeginTx(context.Background())
	require.ErrorIs(t, err, store.ErrNotStarted)
}

func TestMigratorRejectsRenamedVersion(t *testing.T) {
	ctx := context.Background()
	exec := executor(t, openSQLite(t))

	first := fstest.MapFS{"sql/0001_create_a.sql": {Data: []byte(`CREATE TABLE a (id INTEGER);`)}}
	_, err := store.NewMigrator(first, "sql").Run(ctx, exec)
	require.NoError(t, err)

	renamed := fstest.MapFS{"sql/0001_create_b.sql": {Data: []byte(`CREATE TABLE b (id INTEGER);`)}}
	res, err := store.NewMigrator(renamed, "sql").Run(ctx, exec)
	require.Error(t, err)
	require.Contains(t, err.Error(), "already applied")
	require.Equal(t, 1, *res.Failed)
}

func TestParseMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/0010_later.sql": {Data: []byte(`SELECT 1;`)},
		"sql/0002_first.sql": {Data: []byte(`SELECT 1;`)},
		"sql/README.md":      {Data: []byte(`ignored`)},
		"sql/notes_0003.sql": {Data: []byte(`ignored`)},
	}
	migs, err := store.NewMigrator(fsys, "sql").ParseMigrations()
	require.NoError(t, err)
	require.Len(t, migs, 2)
	require.Equal(t, 2, migs[0].Version)
	require.Equal(t, "first", migs[0].Name)
	require.Equal(t, 10, migs[1].Version)

	dup := fstest.MapFS{
		"sql/0001_a.sql": {Data: []byte(`SELECT 1;`)},
		"sql/001_b.sql":  {Data: []byte(`SELECT 1;`)},
	}
	_, err = store.NewMigrator(dup, "sql").ParseMigrations()
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate")
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()
	m := storetest.NewManager(t)
	boom := errors.New("boom")

	err := m.WithTx(ctx, func(tx repository.Tx) error {
		_, err := m.Users().Create(ctx, tx, repository.CreateUserInput{Username: "ana", Email: "ana@example.com", PasswordHash: "x"})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = m.Users().GetByUsername(ctx, nil, "ana")
	require.ErrorIs(t, err, repository.ErrNotFound)

	err = m.WithTx(ctx, func(tx repository.Tx) error {
		_, err := m.Users().Create(ctx, tx, repository.CreateUserInput{Username: "ana", Email: "ana@example.com", PasswordHash: "x"})
		return err
	})
	require.NoError(t, err)

	u, err := m.Users().GetByUsername(ctx, nil, "ana")
	require.NoError(t, err)
	require.False(t, u.Active)
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	m := storetest.NewManager(t)

	require.Panics(t, func() {
		_ = m.WithTx(ctx, func(tx repository.Tx) error {
			_, _ = m.Users().Create(ctx, tx, repository.CreateUserInput{Username: "bob", Email: "b@example.com", PasswordHash: "x"})
			panic("kaboom")
		})
	})

	_, err := m.Users().GetByUsername(ctx, nil, "bob")
	require.ErrorIs(t, err, repository.ErrNotFound)
}
