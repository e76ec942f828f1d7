package storetest

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dropDatabas3/hellojohn-tokens/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-tokens/internal/store"
)

// FromEnv abre y migra el adapter indicado con el DSN de la variable envKey.
// Sin la variable el test se saltea (Postgres/MySQL necesitan un server real).
func FromEnv(t *testing.T, adapter, envKey string) *store.Manager {
	t.Helper()
	dsn := os.Getenv(envKey)
	if dsn == "" {
		t.Skipf("%s not set", envKey)
	}
	ctx := context.Background()
	m, err := store.NewManager(ctx, store.ManagerConfig{
		Adapter: store.AdapterConfig{Name: adapter, DSN: dsn},
		Logger:  zap.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	_, err = m.Start(ctx)
	require.NoError(t, err)
	return m
}

// RunRepositoryContract ejercita los repositorios de m con el comportamiento
// que todos los backends deben compartir. Usa nombres únicos, así que corre
// contra bases compartidas sin limpiar.
//
// concurrent indica si el backend admite escritores concurrentes sobre el pool.
func RunRepositoryContract(t *testing.T, m *store.Manager, concurrent bool) {
	ctx := context.Background()
	toks := m.Tokens()
	users := m.Users()

	newToken := func(t *testing.T, exp int64) *repository.Token {
		t.Helper()
		tok, err := toks.Save(ctx, nil, repository.NewToken{
			TokenHash:     "h-" + uuid.NewString(),
			Type:          repository.TokenTypeAccountActivation,
			Username:      "u-" + uuid.NewString(),
			ExpireAtEpoch: exp,
		})
		require.NoError(t, err)
		return tok
	}

	t.Run("save and fetch", func(t *testing.T) {
		saved := newToken(t, 2_000_000_000)
		require.NotEmpty(t, saved.ID)
		require.Equal(t, int64(0), saved.Version)

		got, err := toks.FetchByID(ctx, nil, saved.ID)
		require.NoError(t, err)
		require.Equal(t, saved.TokenHash, got.TokenHash)
		require.Equal(t, saved.Username, got.Username)
		require.Equal(t, repository.TokenTypeAccountActivation, got.Type)
		require.Equal(t, int64(2_000_000_000), got.ExpireAtEpoch)
		require.Equal(t, int64(0), got.Version)

		got, err = toks.FetchOneBy(ctx, nil, repository.Filter{Field: repository.TokenFieldTokenHash, Value: saved.TokenHash})
		require.NoError(t, err)
		require.Equal(t, saved.ID, got.ID)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := toks.FetchByID(ctx, nil, uuid.NewString())
		require.ErrorIs(t, err, repository.ErrNotFound)

		_, err = toks.FetchOneBy(ctx, nil, repository.Filter{Field: repository.TokenFieldUsername, Value: "nobody-" + uuid.NewString()})
		require.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("invalid filter field", func(t *testing.T) {
		_, err := toks.FetchOneBy(ctx, nil, repository.Filter{Field: "token_hash; DROP TABLE security_token", Value: "x"})
		require.ErrorIs(t, err, repository.ErrInvalidInput)
	})

	t.Run("duplicate hash conflicts", func(t *testing.T) {
		saved := newToken(t, 2_000_000_000)
		_, err := toks.Save(ctx, nil, repository.NewToken{
			TokenHash:     saved.TokenHash,
			Type:          repository.TokenTypeResetPassword,
			Username:      "other",
			ExpireAtEpoch: 2_000_000_000,
		})
		require.ErrorIs(t, err, repository.ErrConflict)
	})

	t.Run("optimistic update", func(t *testing.T) {
		saved := newToken(t, 2_000_000_000)

		next := *saved
		next.ExpireAtEpoch = 2_100_000_000
		updated, err := toks.Update(ctx, nil, &next)
		require.NoError(t, err)
		require.Equal(t, int64(1), updated.Version)

		// reescribir con la version vieja falla
		_, err = toks.Update(ctx, nil, saved)
		require.ErrorIs(t, err, repository.ErrConflict)

		got, err := toks.FetchByID(ctx, nil, saved.ID)
		require.NoError(t, err)
		require.Equal(t, int64(1), got.Version)
		require.Equal(t, int64(2_100_000_000), got.ExpireAtEpoch)
	})

	t.Run("delete by version", func(t *testing.T) {
		saved := newToken(t, 2_000_000_000)

		stale := *saved
		stale.Version = 7
		n, err := toks.Delete(ctx, nil, &stale)
		require.NoError(t, err)
		require.Equal(t, int64(0), n)

		n, err = toks.Delete(ctx, nil, saved)
		require.NoError(t, err)
		require.Equal(t, int64(1), n)

		n, err = toks.Delete(ctx, nil, saved)
		require.NoError(t, err)
		require.Equal(t, int64(0), n)
	})

	t.Run("delete expired", func(t *testing.T) {
		old := newToken(t, 1_000)
		fresh := newToken(t, 2_000_000_000)

		n, err := toks.DeleteExpired(ctx, nil, 1_500)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, int64(1))

		_, err = toks.FetchByID(ctx, nil, old.ID)
		require.ErrorIs(t, err, repository.ErrNotFound)
		_, err = toks.FetchByID(ctx, nil, fresh.ID)
		require.NoError(t, err)
	})

	t.Run("transaction scope", func(t *testing.T) {
		tx, err := m.BeginTx(ctx)
		require.NoError(t, err)

		saved, err := toks.Save(ctx, tx, repository.NewToken{
			TokenHash:     "h-" + uuid.NewString(),
			Type:          repository.TokenTypeResetPassword,
			Username:      "u-" + uuid.NewString(),
			ExpireAtEpoch: 2_000_000_000,
		})
		require.NoError(t, err)

		_, err = toks.FetchByID(ctx, tx, saved.ID)
		require.NoError(t, err)
		require.NoError(t, tx.Rollback(ctx))

		_, err = toks.FetchByID(ctx, nil, saved.ID)
		require.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("foreign tx", func(t *testing.T) {
		_, err := toks.FetchByID(ctx, foreignTx{}, uuid.NewString())
		require.ErrorIs(t, err, repository.ErrForeignTx)
		_, err = users.GetByUsername(ctx, foreignTx{}, "x")
		require.ErrorIs(t, err, repository.ErrForeignTx)
	})

	t.Run("users", func(t *testing.T) {
		name := "user-" + uuid.NewString()
		u, err := users.Create(ctx, nil, repository.CreateUserInput{Username: name, Email: name + "@example.com", PasswordHash: "h1"})
		require.NoError(t, err)
		require.False(t, u.Active)

		_, err = users.Create(ctx, nil, repository.CreateUserInput{Username: name, Email: "x@example.com", PasswordHash: "h"})
		require.ErrorIs(t, err, repository.ErrConflict)

		require.NoError(t, users.Activate(ctx, nil, name))
		require.NoError(t, users.SetPasswordHash(ctx, nil, name, "h2"))

		got, err := users.GetByUsername(ctx, nil, name)
		require.NoError(t, err)
		require.True(t, got.Active)
		require.Equal(t, "h2", got.PasswordHash)
		require.Equal(t, name+"@example.com", got.Email)

		require.ErrorIs(t, users.Activate(ctx, nil, "ghost-"+uuid.NewString()), repository.ErrNotFound)
		require.ErrorIs(t, users.SetPasswordHash(ctx, nil, "ghost-"+uuid.NewString(), "h"), repository.ErrNotFound)
	})

	if !concurrent {
		return
	}

	t.Run("concurrent delete has one winner", func(t *testing.T) {
		saved := newToken(t, 2_000_000_000)

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int64
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				n, err := toks.Delete(ctx, nil, saved)
				if err != nil {
					return
				}
				mu.Lock()
				wins += n
				mu.Unlock()
			}()
		}
		wg.Wait()
		require.Equal(t, int64(1), wins)
	})
}

type foreignTx struct{}

func (foreignTx) Commit(context.Context) error   { return nil }
func (foreignTx) Rollback(context.Context) error { return nil }
