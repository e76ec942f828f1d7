package tokens

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/hellojohn-tokens/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-tokens/internal/security/token"
	"github.com/dropDatabas3/hellojohn-tokens/internal/store"
	"github.com/dropDatabas3/hellojohn-tokens/internal/store/storetest"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestService(t *testing.T, gen func(int) (string, error)) (*Service, *store.Manager, *clock) {
	t.Helper()
	m := storetest.NewManager(t)
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	svc := NewService(Config{DefaultValidity: time.Hour}, Deps{
		Repo:     m.Tokens(),
		Hasher:   token.NewHasher([]byte("test-key")),
		Logger:   zap.NewNop(),
		Now:      c.Now,
		Generate: gen,
	})
	return svc, m, c
}

// sequence devuelve los valores dados en orden y luego tokens aleatorios.
func sequence(vals ...string) func(int) (string, error) {
	var mu sync.Mutex
	return func(n int) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(vals) == 0 {
			return token.GenerateOpaqueToken(n)
		}
		v := vals[0]
		vals = vals[1:]
		return v, nil
	}
}

func TestIssueThenFetch(t *testing.T) {
	svc, _, c := newTestService(t, nil)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "alice", repository.TokenTypeResetPassword, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, issued.ID)
	require.Zero(t, issued.Version)
	require.Len(t, issued.Token, 43)
	require.Equal(t, c.Now().Unix()+3600, issued.ExpireAtEpoch)
	require.NotEqual(t, issued.Token, issued.TokenHash)

	got, err := svc.FetchByToken(ctx, issued.Token)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, issued.ID, got.ID)
	require.Equal(t, issued.Token, got.Token)
	require.Equal(t, repository.TokenTypeResetPassword, got.Type)
	require.Equal(t, "alice", got.Username)
}

func TestIssueDefaultsAndValidation(t *testing.T) {
	svc, _, c := newTestService(t, nil)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, "bob", repository.TokenTypeAccountActivation, 0)
	require.NoError(t, err)
	require.Equal(t, c.Now().Add(time.Hour).Unix(), tok.ExpireAtEpoch)

	_, err = svc.Issue(ctx, "bob", repository.TokenType("magic_link"), time.Hour)
	require.ErrorIs(t, err, ErrInvalidType)

	_, err = svc.Issue(ctx, "bob", repository.TokenTypeAccountActivation, -time.Second)
	require.ErrorIs(t, err, ErrInvalidValidity)
}

func TestFetchUnknownReturnsNil(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	got, err := svc.FetchByToken(context.Background(), "does-not-exist")
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = svc.FetchByToken(context.Background(), "")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestFetchValidHidesExpired(t *testing.T) {
	svc, _, c := newTestService(t, nil)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, "alice", repository.TokenTypeResetPassword, 10*time.Second)
	require.NoError(t, err)

	c.Advance(10 * time.Second) // justo en expire_at todavía vale
	got, err := svc.FetchValid(ctx, tok.Token)
	require.NoError(t, err)
	require.NotNil(t, got)

	c.Advance(time.Second)
	got, err = svc.FetchValid(ctx, tok.Token)
	require.NoError(t, err)
	require.Nil(t, got)

	// FetchByToken no mira vencimiento
	got, err = svc.FetchByToken(ctx, tok.Token)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestConsumeExactlyOnce(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	rec, err := svc.Issue(ctx, "alice", repository.TokenTypeResetPassword, time.Hour)
	require.NoError(t, err)

	require.NoError(t, svc.Consume(ctx, nil, rec))
	require.ErrorIs(t, svc.Consume(ctx, nil, rec), ErrAlreadyUsedOrExpired)

	again, err := svc.FetchByToken(ctx, rec.Token)
	require.NoError(t, err)
	require.Nil(t, again)
}

func TestConsumeStaleVersion(t *testing.T) {
	svc, m, _ := newTestService(t, nil)
	ctx := context.Background()

	rec, err := svc.Issue(ctx, "alice", repository.TokenTypeResetPassword, time.Hour)
	require.NoError(t, err)

	_, err = m.Tokens().Update(ctx, nil, rec)
	require.NoError(t, err)

	// rec quedó con version 0; el registro ya está en 1
	require.ErrorIs(t, svc.Consume(ctx, nil, rec), ErrAlreadyUsedOrExpired)
}

func TestConsumeExpired(t *testing.T) {
	svc, _, c := newTestService(t, nil)
	ctx := context.Background()

	rec, err := svc.Issue(ctx, "alice", repository.TokenTypeAccountActivation, time.Minute)
	require.NoError(t, err)

	c.Advance(time.Minute + time.Second)
	require.ErrorIs(t, svc.Consume(ctx, nil, rec), ErrAlreadyUsedOrExpired)
}

func TestConsumeConcurrentSingleWinner(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	rec, err := svc.Issue(ctx, "alice", repository.TokenTypeResetPassword, time.Hour)
	require.NoError(t, err)

	var (
		mu       sync.Mutex
		ok, used int
	)
	var g errgroup.Group
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			cp := *rec
			err := svc.Consume(ctx, nil, &cp)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrAlreadyUsedOrExpired):
				used++
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, 1, ok)
	require.Equal(t, 9, used)
}

func TestConsumeUnknownToken(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	got, err := svc.FetchByToken(ctx, "does-not-exist")
	require.NoError(t, err)
	require.ErrorIs(t, svc.Consume(ctx, nil, got), ErrAlreadyUsedOrExpired)
}

func TestIssueTxRolledBack(t *testing.T) {
	svc, m, _ := newTestService(t, nil)
	ctx := context.Background()

	var rec *repository.Token
	boom := errors.New("boom")
	err := m.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		rec, err = svc.IssueTx(ctx, tx, "alice", repository.TokenTypeAccountActivation, time.Hour)
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := svc.FetchByToken(ctx, rec.Token)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestConsumeInsideRolledBackTx(t *testing.T) {
	svc, m, _ := newTestService(t, nil)
	ctx := context.Background()

	rec, err := svc.Issue(ctx, "alice", repository.TokenTypeResetPassword, time.Hour)
	require.NoError(t, err)

	boom := errors.New("side effect failed")
	err = m.WithTx(ctx, func(tx repository.Tx) error {
		require.NoError(t, svc.Consume(ctx, tx, rec))
		return boom
	})
	require.ErrorIs(t, err, boom)

	// el rollback devuelve el token
	got, err := svc.FetchByToken(ctx, rec.Token)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NoError(t, svc.Consume(ctx, nil, got))
}

func TestIssueConcurrentDistinct(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	const n = 100
	out := make([]string, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			tok, err := svc.Issue(ctx, "alice", repository.TokenTypeAccountActivation, time.Hour)
			if err != nil {
				return err
			}
			out[i] = tok.Token
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[string]struct{}, n)
	for _, s := range out {
		seen[s] = struct{}{}
	}
	require.Len(t, seen, n)
}

func TestIssueRetriesOnCollision(t *testing.T) {
	svc, _, _ := newTestService(t, sequence("taken", "taken", "taken"))
	ctx := context.Background()

	first, err := svc.Issue(ctx, "alice", repository.TokenTypeAccountActivation, time.Hour)
	require.NoError(t, err)
	require.Equal(t, "taken", first.Token)

	// dos colisiones absorbidas, el tercer intento usa un token aleatorio
	second, err := svc.Issue(ctx, "bob", repository.TokenTypeAccountActivation, time.Hour)
	require.NoError(t, err)
	require.NotEqual(t, "taken", second.Token)
}

func TestIssueExhaustsRetries(t *testing.T) {
	svc, _, _ := newTestService(t, func(int) (string, error) { return "always-the-same", nil })
	ctx := context.Background()

	_, err := svc.Issue(ctx, "alice", repository.TokenTypeAccountActivation, time.Hour)
	require.NoError(t, err)

	_, err = svc.Issue(ctx, "alice", repository.TokenTypeAccountActivation, time.Hour)
	require.ErrorIs(t, err, ErrIssuance)
	require.False(t, errors.Is(err, repository.ErrConflict))
}

func TestScenarioResetPassword(t *testing.T) {
	svc, _, c := newTestService(t, nil)
	ctx := context.Background()

	rec, err := svc.Issue(ctx, "alice", repository.TokenTypeResetPassword, 3600*time.Second)
	require.NoError(t, err)
	require.Equal(t, c.Now().Unix()+3600, rec.ExpireAtEpoch)

	require.NoError(t, svc.Consume(ctx, nil, rec))
	require.ErrorIs(t, svc.Consume(ctx, nil, rec), ErrAlreadyUsedOrExpired)
}

func TestSweepExpired(t *testing.T) {
	svc, _, c := newTestService(t, nil)
	ctx := context.Background()

	short, err := svc.Issue(ctx, "alice", repository.TokenTypeAccountActivation, time.Minute)
	require.NoError(t, err)
	long, err := svc.Issue(ctx, "alice", repository.TokenTypeResetPassword, 2*time.Hour)
	require.NoError(t, err)

	c.Advance(time.Hour)
	n, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got, err := svc.FetchByToken(ctx, short.Token)
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = svc.FetchByToken(ctx, long.Token)
	require.NoError(t, err)
	require.NotNil(t, got)
}
